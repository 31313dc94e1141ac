package cmd

import (
	"fmt"

	"github.com/cleanslate-tools/cleanslate/internal/audit"
	"github.com/cleanslate-tools/cleanslate/internal/policy"
	"github.com/cleanslate-tools/cleanslate/internal/recovery"
	"github.com/cleanslate-tools/cleanslate/internal/safedel"
	"github.com/cleanslate-tools/cleanslate/internal/sentinel"
)

// appContext is the wired safety core every command runs against. It is
// built fresh per invocation, in dependency order; a sentinel self-test
// failure aborts construction and therefore the whole command.
type appContext struct {
	Policy   *policy.Policy
	Audit    *audit.Logger
	Sentinel *sentinel.Sentinel
	Recovery *recovery.Manager
	Deleter  *safedel.Deleter
}

func newAppContext() (*appContext, error) {
	p, err := policy.Load(policyPath)
	if err != nil {
		return nil, err
	}

	logger, err := audit.New("")
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	sent, err := sentinel.New(p, logger)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("security sentinel failed to start, refusing to run: %w", err)
	}

	rec, err := recovery.NewManager("", logger)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open recovery store: %w", err)
	}

	return &appContext{
		Policy:   p,
		Audit:    logger,
		Sentinel: sent,
		Recovery: rec,
		Deleter:  safedel.New(sent, logger),
	}, nil
}

// Close flushes and closes the audit log.
func (a *appContext) Close() {
	if a.Audit != nil {
		_ = a.Audit.Close()
	}
}
