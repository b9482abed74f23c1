package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nidhogg/nuka-commands/internal/command"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// LoadDir reads every *.yaml and *.yml file in dir and returns one group
// per file, named after it. If dir doesn't exist, returns nothing without
// error. Broken entries are skipped and reported in the combined error.
func LoadDir(dir string) ([]*command.Group, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading manifest directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var (
		groups []*command.Group
		errs   error
	)
	for _, name := range names {
		g, err := LoadFile(filepath.Join(dir, name))
		errs = multierr.Append(errs, err)
		if g != nil {
			groups = append(groups, g)
		}
	}
	return groups, errs
}

// LoadFile reads a single manifest into a group named after the file.
func LoadFile(path string) (*command.Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	base := filepath.Base(path)
	specs, parseErr := Parse(data, base)

	g := command.NewGroup(strings.TrimSuffix(base, filepath.Ext(base)))
	errs := parseErr
	for _, spec := range specs {
		if _, err := g.Add(spec); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", base, err))
		}
	}
	if len(g.Definitions()) == 0 && errs != nil {
		return nil, errs
	}
	return g, errs
}

// Install loads dir and registers every group with reg. Failures are
// logged per entry; whatever compiled and registered cleanly stays.
func Install(reg *command.Registry, dir string, logger *zap.Logger) ([]*command.Group, error) {
	groups, err := LoadDir(dir)
	for _, e := range multierr.Errors(err) {
		logger.Warn("skipping manifest entry", zap.Error(e))
	}

	var regErrs error
	loaded := 0
	for _, g := range groups {
		if err := g.Register(reg); err != nil {
			for _, e := range multierr.Errors(err) {
				logger.Warn("manifest command not registered", zap.Error(e))
			}
			regErrs = multierr.Append(regErrs, err)
		}
		loaded += len(g.Definitions())
	}
	logger.Info("loaded command manifests",
		zap.String("dir", dir), zap.Int("files", len(groups)), zap.Int("commands", loaded))
	return groups, multierr.Append(err, regErrs)
}
