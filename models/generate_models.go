package models

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"

	"gorm.io/gen"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

/*
Column report usage:

Set GENERATE_COLUMN_REPORT=true and start the binary. Columns that exist in
the database but that no model field maps to are listed per table:

=== COLUMN MISMATCH REPORT ===
--- Table: projects ---
Found 1 columns not accounted for in model:
  - legacy_cover

=== SUMMARY ===
Total mismatched columns across all tables: 1
*/

// modelMappings maps table names to the structs that own them
var modelMappings = map[string]interface{}{
	"projects": Project{},
}

// TableColumns is the outcome of comparing one table with its model.
type TableColumns struct {
	Table    string
	Missing  bool     // table not created yet
	Unmapped []string // columns no model field maps to
}

// GenerateModels migrates the schema, prints the column report and writes
// gorm/gen query helpers to ./generated.
func GenerateModels(db *gorm.DB) error {
	verbose := db.Session(&gorm.Session{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{LogLevel: logger.Info, Colorful: true},
		),
		SkipDefaultTransaction: true,
	})

	fmt.Println("Migrating models...")
	if err := verbose.AutoMigrate(&Project{}); err != nil {
		return fmt.Errorf("migrate models: %w", err)
	}

	if err := GenerateColumnMismatchReport(db); err != nil {
		return err
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:           "./generated",
		Mode:              gen.WithDefaultQuery | gen.WithQueryInterface,
		FieldNullable:     true,
		FieldCoverable:    true,
		FieldWithIndexTag: true,
		FieldWithTypeTag:  true,
	})
	g.UseDB(db)
	g.ApplyBasic(Project{})
	g.Execute()

	fmt.Println("Model generation complete!")
	return nil
}

// GenerateColumnMismatchReport prints database columns that aren't accounted for in Go models
func GenerateColumnMismatchReport(db *gorm.DB) error {
	tables, err := CompareColumns(db)
	if err != nil {
		return err
	}
	writeColumnReport(os.Stdout, tables)
	return nil
}

// CompareColumns checks every mapped table, in name order.
func CompareColumns(db *gorm.DB) ([]TableColumns, error) {
	names := make([]string, 0, len(modelMappings))
	for name := range modelMappings {
		names = append(names, name)
	}
	sort.Strings(names)

	migrator := db.Migrator()
	out := make([]TableColumns, 0, len(names))
	for _, name := range names {
		if !migrator.HasTable(name) {
			out = append(out, TableColumns{Table: name, Missing: true})
			continue
		}

		columnTypes, err := migrator.ColumnTypes(name)
		if err != nil {
			return nil, fmt.Errorf("read columns of %s: %w", name, err)
		}
		dbColumns := make([]string, 0, len(columnTypes))
		for _, ct := range columnTypes {
			dbColumns = append(dbColumns, ct.Name())
		}

		modelFields, err := getModelFields(modelMappings[name])
		if err != nil {
			return nil, fmt.Errorf("parse model for %s: %w", name, err)
		}

		out = append(out, TableColumns{Table: name, Unmapped: findColumnMismatches(dbColumns, modelFields)})
	}
	return out, nil
}

// writeColumnReport renders the report and returns the number of unmapped columns.
func writeColumnReport(w io.Writer, tables []TableColumns) int {
	fmt.Fprintln(w, "=== COLUMN MISMATCH REPORT ===")

	total := 0
	for _, t := range tables {
		fmt.Fprintf(w, "\n--- Table: %s ---\n", t.Table)
		switch {
		case t.Missing:
			fmt.Fprintln(w, "Table does not exist yet (will be created during migration)")
		case len(t.Unmapped) == 0:
			fmt.Fprintln(w, "All columns are accounted for in the model.")
		default:
			fmt.Fprintf(w, "Found %d columns not accounted for in model:\n", len(t.Unmapped))
			for _, col := range t.Unmapped {
				fmt.Fprintf(w, "  - %s\n", col)
			}
			total += len(t.Unmapped)
		}
	}

	fmt.Fprintf(w, "\n=== SUMMARY ===\n")
	fmt.Fprintf(w, "Total mismatched columns across all tables: %d\n", total)
	return total
}

// getModelFields returns the column names GORM maps for a model
func getModelFields(model interface{}) ([]string, error) {
	s, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		return nil, err
	}
	return s.DBNames, nil
}

// findColumnMismatches returns dbColumns absent from modelFields, in database order
func findColumnMismatches(dbColumns, modelFields []string) []string {
	mapped := make(map[string]struct{}, len(modelFields))
	for _, field := range modelFields {
		mapped[field] = struct{}{}
	}

	var unmapped []string
	for _, col := range dbColumns {
		if _, ok := mapped[col]; !ok {
			unmapped = append(unmapped, col)
		}
	}
	return unmapped
}
