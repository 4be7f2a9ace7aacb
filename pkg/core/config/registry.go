// Package config holds the declarative report registry and runtime settings.
// The registry is loaded once at startup and injected into the pipeline; no
// component reads it through package-level state.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

//go:embed registry.yaml
var defaultRegistryYAML []byte

// KeyValueSpec declares a single scalar extraction point on a sheet.
type KeyValueSpec struct {
	Title      string `yaml:"title"`
	Row        int    `yaml:"row"`
	Col        int    `yaml:"col"`
	Format     string `yaml:"format,omitempty"`
	AddToTable bool   `yaml:"add_to_table,omitempty"`
	Placement  string `yaml:"placement,omitempty"`
}

// DerivedColumnSpec declares one computed column.
type DerivedColumnSpec struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	SourceColumn string `yaml:"source_column,omitempty"`
	Window       int    `yaml:"window,omitempty"`
	Condition    string `yaml:"condition,omitempty"`
	Formula      string `yaml:"formula,omitempty"`
	Format       string `yaml:"format,omitempty"`
	Placement    string `yaml:"placement,omitempty"`
	DateColumn   string `yaml:"date_column,omitempty"`
	Description  string `yaml:"description,omitempty"`
}

// ExportSpec carries the persistence target shared by both table kinds.
type ExportSpec struct {
	ExportToDB       bool     `yaml:"export_to_db,omitempty"`
	TableName        string   `yaml:"table_name,omitempty"`
	PrimaryKeys      []string `yaml:"primary_keys,omitempty"`
	SkipEmptyUpdates bool     `yaml:"skip_empty_updates,omitempty"`
}

// TableSpec declares a fixed-header table anchored on a title cell.
type TableSpec struct {
	Title        string              `yaml:"title"`
	AddKeys      bool                `yaml:"add_keys,omitempty"`
	AddDataDate  bool                `yaml:"add_data_date,omitempty"`
	ColCount     int                 `yaml:"col_count,omitempty"`
	StartFromEnd bool                `yaml:"start_from_end,omitempty"`
	FillNA       bool                `yaml:"fill_na,omitempty"`
	Headers      []string            `yaml:"headers,omitempty"`
	Derived      []DerivedColumnSpec `yaml:"calculated_columns,omitempty"`
	ExportSpec   `yaml:",inline"`
}

// ConcatSpec declares a cross-region concatenation: a single metric column
// extracted by start row, joined side-by-side onto a text-search-anchored table.
type ConcatSpec struct {
	MetricStartRow     int    `yaml:"metric_start_row"`
	SkipMetricFirstRow bool   `yaml:"skip_metric_first_row,omitempty"`
	MetricColumnName   string `yaml:"metric_column_name"`
	SearchText         string `yaml:"search_text"`
	StripYears         bool   `yaml:"strip_years,omitempty"`
	RowOffset          int    `yaml:"row_offset,omitempty"`
}

// MultiConcatSheet is one (sheet, start row) source of a cross-sheet join.
type MultiConcatSheet struct {
	SheetName string `yaml:"sheet_name"`
	StartRow  int    `yaml:"start_row"`
}

// MultiConcatSpec declares a cross-sheet cumulative concatenation.
type MultiConcatSpec struct {
	JoinColumn string             `yaml:"join_column"`
	Sheets     []MultiConcatSheet `yaml:"sheets"`
}

// NoTitleTableSpec declares a headerless table located by start row, or one of
// the concatenation variants.
type NoTitleTableSpec struct {
	Title            string              `yaml:"title"`
	Type             string              `yaml:"type,omitempty"` // "", "concatenate_tables", "multi_concatenate_tables"
	StartRow         int                 `yaml:"start_row,omitempty"`
	AddKeys          bool                `yaml:"add_keys,omitempty"`
	AddDataDate      bool                `yaml:"add_data_date,omitempty"`
	FillNA           bool                `yaml:"fill_na,omitempty"`
	FlatTable        bool                `yaml:"flat_table,omitempty"`
	FlatBy           string              `yaml:"flat_by,omitempty"` // "day" (default) or "month"
	ColumnsToExclude []string            `yaml:"columns_to_exclude,omitempty"`
	Headers          []string            `yaml:"headers,omitempty"`
	Derived          []DerivedColumnSpec `yaml:"calculated_columns,omitempty"`
	MergeWith        string              `yaml:"merge_with,omitempty"`
	MergeOn          string              `yaml:"merge_on,omitempty"`
	Concat           *ConcatSpec         `yaml:"concatenate_config,omitempty"`
	MultiConcat      *MultiConcatSpec    `yaml:"multi_concatenate_config,omitempty"`
	ExportSpec       `yaml:",inline"`
}

// SheetSpec is everything declared for one sheet of a report.
type SheetSpec struct {
	Name          string             `yaml:"name"`
	KeyValues     []KeyValueSpec     `yaml:"key_values,omitempty"`
	Tables        []TableSpec        `yaml:"tables,omitempty"`
	NoTitleTables []NoTitleTableSpec `yaml:"no_title_tables,omitempty"`
}

// ReportSpec is one known report type, keyed by its canonical file name.
// Sheets are ordered: later sheets may read key values from earlier ones.
type ReportSpec struct {
	Name   string      `yaml:"name"`
	Sheets []SheetSpec `yaml:"sheets"`
}

type registryDocument struct {
	Reports []ReportSpec `yaml:"reports"`
}

// Registry maps canonical report names to their declarations. Immutable after
// load.
type Registry struct {
	byName map[string]*ReportSpec
	names  []string
}

// LoadRegistry parses a registry YAML document.
func LoadRegistry(data []byte) (*Registry, error) {
	var doc registryDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse registry document: %w", err)
	}
	if len(doc.Reports) == 0 {
		return nil, fmt.Errorf("registry document declares no reports")
	}
	reg := &Registry{byName: make(map[string]*ReportSpec, len(doc.Reports))}
	for i := range doc.Reports {
		r := &doc.Reports[i]
		if r.Name == "" {
			return nil, fmt.Errorf("registry report %d has no name", i)
		}
		if _, dup := reg.byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate registry entry %q", r.Name)
		}
		reg.byName[r.Name] = r
		reg.names = append(reg.names, r.Name)
	}
	return reg, nil
}

// LoadRegistryFile loads a registry from a YAML file on disk.
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return LoadRegistry(data)
}

// DefaultRegistry loads the registry embedded in the binary.
func DefaultRegistry() (*Registry, error) {
	return LoadRegistry(defaultRegistryYAML)
}

// Report looks up a report declaration by canonical name.
func (r *Registry) Report(name string) (*ReportSpec, bool) {
	spec, ok := r.byName[name]
	return spec, ok
}

// Names returns the declared report names in document order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len reports the number of registered report types.
func (r *Registry) Len() int { return len(r.byName) }
