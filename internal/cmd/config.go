package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/AdguardTeam/filterengine"
	"github.com/AdguardTeam/filterengine/filterlist"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// defaultMaxListSize is the default maximum size of a filter list file.
const defaultMaxListSize = 256 * datasize.MB

// defaultCacheSize is the default number of cached request results.
const defaultCacheSize = 10_000

// configuration represents the YAML configuration of the tool.
type configuration struct {
	// CosmeticDump is the optional configuration of the cosmetic result
	// dump.
	CosmeticDump *cosmeticDumpConfig `yaml:"cosmetic_dump"`

	// Lists are the filter lists to load.
	Lists []*listConfig `yaml:"lists"`

	// MaxListSize is the maximum size of a single filter list file.
	MaxListSize datasize.ByteSize `yaml:"max_list_size"`

	// ChunkSize is the number of rules added to the engine between the
	// cancellation checks.
	ChunkSize int `yaml:"chunk_size"`

	// CacheSize is the number of request results to cache.  Zero disables
	// caching.
	CacheSize int `yaml:"cache_size"`
}

// listConfig is the configuration of a single filter list.
type listConfig struct {
	// Path is the path to the filter list file.
	Path string `yaml:"path"`

	// ID is the identifier of the list.  It must be positive and unique.
	ID int `yaml:"id"`

	// IgnoreCosmetic, if true, makes the list skip the cosmetic rules.
	IgnoreCosmetic bool `yaml:"ignore_cosmetic"`
}

// cosmeticDumpConfig is the configuration of the dump of the cosmetic results
// for a set of hostnames.
type cosmeticDumpConfig struct {
	// Path is the path to the resulting JSON file.  The file is replaced
	// atomically.
	Path string `yaml:"path"`

	// Hostnames are the hostnames to get the cosmetic results for.
	Hostnames []string `yaml:"hostnames"`
}

// newDefaultConfig returns the configuration used when no configuration file
// is given.
func newDefaultConfig() (c *configuration) {
	return &configuration{
		MaxListSize: defaultMaxListSize,
		ChunkSize:   filterengine.DefaultChunkSize,
		CacheSize:   defaultCacheSize,
	}
}

// readConfig reads the configuration from path.  If path is empty, the default
// configuration is returned.
func readConfig(path string) (c *configuration, err error) {
	c = newDefaultConfig()
	if path == "" {
		return c, nil
	}

	// #nosec G304 -- Trust the path explicitly given by the user.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	err = yaml.Unmarshal(data, c)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return c, nil
}

// addFilterPaths appends the lists given by paths to c, assigning them the
// identifiers following the largest configured one.
func (c *configuration) addFilterPaths(paths []string) {
	maxID := 0
	for _, l := range c.Lists {
		if l != nil {
			maxID = max(maxID, l.ID)
		}
	}

	for i, p := range paths {
		c.Lists = append(c.Lists, &listConfig{
			Path: p,
			ID:   maxID + i + 1,
		})
	}
}

// type check
var _ validate.Interface = (*configuration)(nil)

// Validate implements the [validate.Interface] interface for *configuration.
func (c *configuration) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.Positive("max_list_size", c.MaxListSize),
		validate.Positive("chunk_size", c.ChunkSize),
		validate.NotNegative("cache_size", c.CacheSize),
		validate.NotEmptySlice("lists", c.Lists),
	}

	ids := container.NewMapSet[int]()
	for i, l := range c.Lists {
		name := fmt.Sprintf("lists[%d]", i)
		errs = validate.Append(errs, name, l)
		if l == nil {
			continue
		}

		if ids.Has(l.ID) {
			errs = append(errs, fmt.Errorf("%s: id %d: %w", name, l.ID, errors.ErrDuplicated))
		}

		ids.Add(l.ID)
	}

	if c.CosmeticDump != nil {
		errs = validate.Append(errs, "cosmetic_dump", c.CosmeticDump)
	}

	return errors.Join(errs...)
}

// type check
var _ validate.Interface = (*listConfig)(nil)

// Validate implements the [validate.Interface] interface for *listConfig.
func (c *listConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return errors.Join(
		validate.NotEmpty("path", c.Path),
		validate.Positive("id", c.ID),
	)
}

// type check
var _ validate.Interface = (*cosmeticDumpConfig)(nil)

// Validate implements the [validate.Interface] interface for
// *cosmeticDumpConfig.
func (c *cosmeticDumpConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.NotEmpty("path", c.Path),
		validate.NotEmptySlice("hostnames", c.Hostnames),
	}

	if slices.Contains(c.Hostnames, "") {
		errs = append(errs, fmt.Errorf("hostnames: %w", errors.ErrEmptyValue))
	}

	return errors.Join(errs...)
}

// openLists opens the rule lists described by c.  The lists larger than
// c.MaxListSize are rejected.  If err is not nil, all opened lists are closed.
func (c *configuration) openLists(
	logger *slog.Logger,
) (lists []filterlist.RuleList, err error) {
	for _, lc := range c.Lists {
		var l filterlist.RuleList
		l, err = c.openList(lc, logger)
		if err != nil {
			for _, opened := range lists {
				err = errors.WithDeferred(err, opened.Close())
			}

			return nil, err
		}

		lists = append(lists, l)
	}

	return lists, nil
}

// openList opens a single rule list checking its size.
func (c *configuration) openList(
	lc *listConfig,
	logger *slog.Logger,
) (l filterlist.RuleList, err error) {
	fi, err := os.Stat(lc.Path)
	if err != nil {
		return nil, fmt.Errorf("list %d: %w", lc.ID, err)
	}

	if size := datasize.ByteSize(fi.Size()); size > c.MaxListSize {
		return nil, fmt.Errorf(
			"list %d: size %s is greater than max_list_size %s",
			lc.ID,
			size.HR(),
			c.MaxListSize.HR(),
		)
	}

	return filterlist.NewFileRuleList(lc.ID, lc.Path, lc.IgnoreCosmetic, logger)
}
