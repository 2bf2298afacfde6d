// Package executor dispatches parsed ast.Statement values against an
// open engine.Database, producing a tabular Result.
package executor

import (
	"fmt"
	"log/slog"

	"github.com/daniilsunyaev/yarrd/internal/engine"
	"github.com/daniilsunyaev/yarrd/internal/sql/ast"
	"github.com/daniilsunyaev/yarrd/internal/sql/parser"
	"github.com/daniilsunyaev/yarrd/internal/table"
	"github.com/daniilsunyaev/yarrd/internal/types"
)

// Result is the tabular outcome of executing one statement.
type Result struct {
	Columns      []string
	Rows         [][]any
	AffectedRows int
}

// Executor runs SQL text against a single connected Database.
type Executor struct {
	DB  *engine.Database
	log *slog.Logger
}

func New(db *engine.Database) *Executor {
	return &Executor{DB: db, log: slog.Default().With("component", "executor")}
}

// ExecSQL parses and executes one statement.
func (e *Executor) ExecSQL(sql string) (*Result, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("executor: parse: %w", err)
	}
	return e.execStatement(stmt)
}

func (e *Executor) execStatement(stmt ast.Statement) (*Result, error) {
	switch s := stmt.(type) {
	case ast.CreateTableStmt:
		return e.execCreateTable(s)
	case ast.DropTableStmt:
		return e.execDropTable(s)
	case ast.CreateIndexStmt:
		return e.execCreateIndex(s)
	case ast.DropIndexStmt:
		return e.execDropIndex(s)
	case ast.InsertStmt:
		return e.execInsert(s)
	case ast.SelectStmt:
		return e.execSelect(s)
	case ast.UpdateStmt:
		return e.execUpdate(s)
	case ast.DeleteStmt:
		return e.execDelete(s)
	case ast.VacuumStmt:
		return e.execVacuum(s)
	case ast.AlterTableStmt:
		return e.execAlter(s)
	default:
		return nil, fmt.Errorf("executor: unhandled statement type %T", stmt)
	}
}

func (e *Executor) execCreateTable(s ast.CreateTableStmt) (*Result, error) {
	cols := make([]types.Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = types.Column{Name: c.Name, Type: c.Type, Constraints: c.Constraints}
	}
	_, err := e.DB.CreateTable(s.Table, types.Schema{Columns: cols})
	if err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Executor) execDropTable(s ast.DropTableStmt) (*Result, error) {
	if err := e.DB.DropTable(s.Table); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Executor) execCreateIndex(s ast.CreateIndexStmt) (*Result, error) {
	t, err := e.DB.Table(s.Table)
	if err != nil {
		return nil, err
	}
	if err := t.CreateIndex(s.Column, s.Column); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Executor) execDropIndex(s ast.DropIndexStmt) (*Result, error) {
	t, err := e.DB.Table(s.Table)
	if err != nil {
		return nil, err
	}
	if err := t.DropIndex(s.Column); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Executor) execInsert(s ast.InsertStmt) (*Result, error) {
	t, err := e.DB.Table(s.Table)
	if err != nil {
		return nil, err
	}

	values := s.Values
	if len(s.Columns) > 0 {
		values = make([]any, len(t.Schema.Columns))
		for i, col := range s.Columns {
			ci := t.Schema.ColumnIndex(col)
			if ci < 0 {
				return nil, fmt.Errorf("%w: %q", table.ErrColumnNotFound, col)
			}
			values[ci] = s.Values[i]
		}
	}

	if _, err := t.Insert(values); err != nil {
		return nil, err
	}
	return &Result{AffectedRows: 1}, nil
}

func (e *Executor) execSelect(s ast.SelectStmt) (*Result, error) {
	t, err := e.DB.Table(s.Table)
	if err != nil {
		return nil, err
	}
	rows, err := t.Select(s.Where)
	if err != nil {
		return nil, err
	}

	colNames := s.Columns
	colIdx := make([]int, 0, len(t.Schema.Columns))
	if len(colNames) == 0 {
		for i, c := range t.Schema.Columns {
			colNames = append(colNames, c.Name)
			colIdx = append(colIdx, i)
		}
	} else {
		for _, name := range colNames {
			ci := t.Schema.ColumnIndex(name)
			if ci < 0 {
				return nil, fmt.Errorf("%w: %q", table.ErrColumnNotFound, name)
			}
			colIdx = append(colIdx, ci)
		}
	}

	out := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, len(colIdx))
		for j, ci := range colIdx {
			row[j] = r.Values[ci]
		}
		out[i] = row
	}
	return &Result{Columns: colNames, Rows: out, AffectedRows: len(out)}, nil
}

func (e *Executor) execUpdate(s ast.UpdateStmt) (*Result, error) {
	t, err := e.DB.Table(s.Table)
	if err != nil {
		return nil, err
	}
	updates := make(map[string]any, len(s.Sets))
	for _, set := range s.Sets {
		updates[set.Column] = set.Value
	}
	n, err := t.Update(s.Where, updates)
	if err != nil {
		return nil, err
	}
	return &Result{AffectedRows: n}, nil
}

func (e *Executor) execDelete(s ast.DeleteStmt) (*Result, error) {
	t, err := e.DB.Table(s.Table)
	if err != nil {
		return nil, err
	}
	n, err := t.Delete(s.Where)
	if err != nil {
		return nil, err
	}
	return &Result{AffectedRows: n}, nil
}

func (e *Executor) execVacuum(s ast.VacuumStmt) (*Result, error) {
	t, err := e.DB.Table(s.Table)
	if err != nil {
		return nil, err
	}
	if err := t.Vacuum(); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Executor) execAlter(s ast.AlterTableStmt) (*Result, error) {
	t, err := e.DB.Table(s.Table)
	if err != nil {
		return nil, err
	}

	switch s.Kind {
	case ast.AlterRenameTable:
		return &Result{}, e.DB.RenameTable(s.Table, s.NewName)
	case ast.AlterRenameColumn:
		return &Result{}, t.AlterRenameColumn(s.OldColumn, s.NewColumn)
	case ast.AlterAddColumn:
		col := types.Column{Name: s.AddColumn.Name, Type: s.AddColumn.Type, Constraints: s.AddColumn.Constraints}
		return &Result{}, t.AlterAddColumn(col, s.DefaultValue)
	case ast.AlterDropColumn:
		return &Result{}, t.AlterDropColumn(s.OldColumn)
	case ast.AlterAddConstraint:
		return &Result{}, t.AlterAddConstraint(s.OldColumn, s.Constraint)
	case ast.AlterDropConstraint:
		return &Result{}, t.AlterDropConstraint(s.OldColumn, s.Constraint.Kind)
	default:
		return nil, fmt.Errorf("executor: unhandled alter kind %v", s.Kind)
	}
}
