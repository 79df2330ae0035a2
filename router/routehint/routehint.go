package routehint

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
)

// HintContext carries request scoped routing signals supplied out of band.
type HintContext struct {
	// DataSource forces the statement verbatim onto one datasource.
	DataSource string

	// DatabaseValues and TableValues are keyed by lower-cased logical table.
	DatabaseValues map[string][]any
	TableValues    map[string][]any

	DisabledDataSources []string
}

// DatabaseHint returns the database sharding values hinted for table.
func (h *HintContext) DatabaseHint(table string) ([]any, bool) {
	if h == nil {
		return nil, false
	}
	v, ok := h.DatabaseValues[strings.ToLower(table)]
	return v, ok && len(v) > 0
}

// TableHint returns the table sharding values hinted for table.
func (h *HintContext) TableHint(table string) ([]any, bool) {
	if h == nil {
		return nil, false
	}
	v, ok := h.TableValues[strings.ToLower(table)]
	return v, ok && len(v) > 0
}

func (h *HintContext) ForcedDataSource() (string, bool) {
	if h == nil || h.DataSource == "" {
		return "", false
	}
	return h.DataSource, true
}

func (h *HintContext) IsDisabled(ds string) bool {
	return h != nil && slices.Contains(h.DisabledDataSources, ds)
}

func (h *HintContext) AddDatabaseValue(table string, v any) {
	if h.DatabaseValues == nil {
		h.DatabaseValues = map[string][]any{}
	}
	t := strings.ToLower(table)
	h.DatabaseValues[t] = append(h.DatabaseValues[t], v)
}

func (h *HintContext) AddTableValue(table string, v any) {
	if h.TableValues == nil {
		h.TableValues = map[string][]any{}
	}
	t := strings.ToLower(table)
	h.TableValues[t] = append(h.TableValues[t], v)
}

// Comment option names understood by FromOptions.
const (
	OptDataSource        = "datasource"
	OptDisableDataSource = "disable_datasource"
	OptDatabaseValue     = "database_value"
	OptTableValue        = "table_value"
)

// FromOptions builds a hint context from "key: value" comment options.
// Value lists are separated by '|', per-table keys are "<table>.database_value"
// and "<table>.table_value".
func FromOptions(opts map[string]string) (*HintContext, error) {
	if len(opts) == 0 {
		return nil, nil
	}
	h := &HintContext{}
	for key, val := range opts {
		k := strings.ToLower(key)
		switch {
		case k == OptDataSource:
			h.DataSource = val
		case k == OptDisableDataSource:
			h.DisabledDataSources = append(h.DisabledDataSources, strings.Split(val, "|")...)
			slices.Sort(h.DisabledDataSources)
		case strings.HasSuffix(k, "."+OptDatabaseValue):
			table := strings.TrimSuffix(k, "."+OptDatabaseValue)
			for _, v := range strings.Split(val, "|") {
				h.AddDatabaseValue(table, parseValue(v))
			}
		case strings.HasSuffix(k, "."+OptTableValue):
			table := strings.TrimSuffix(k, "."+OptTableValue)
			for _, v := range strings.Split(val, "|") {
				h.AddTableValue(table, parseValue(v))
			}
		default:
			return nil, sherror.Newf(sherror.SHARD_PARSE_ERROR, "unknown routing hint %q", key)
		}
	}
	return h, nil
}

func parseValue(s string) any {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return strings.Trim(s, "'\"")
}
