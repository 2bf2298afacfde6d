// Package parser implements a recursive-descent parser over lexer.Token
// producing the tagged ast.Statement variants.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/daniilsunyaev/yarrd/internal/sql/ast"
	"github.com/daniilsunyaev/yarrd/internal/sql/lexer"
	"github.com/daniilsunyaev/yarrd/internal/types"
)

// Parser walks a fixed token slice produced by the lexer.
type Parser struct {
	toks []lexer.Token
	pos  int
}

// Parse tokenizes and parses a single SQL statement.
func Parse(src string) (ast.Statement, error) {
	toks, err := lexer.All(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	return p.parseStatement()
}

func (p *Parser) peek() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) advance() lexer.Token {
	t := p.peek()
	p.pos++
	return t
}

func (p *Parser) atKeyword(kw string) bool {
	t := p.peek()
	return t.Kind == lexer.Keyword && t.Text == kw
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return fmt.Errorf("parser: expected keyword %s, got %q", kw, p.peek().Text)
	}
	p.pos++
	return nil
}

func (p *Parser) expectPunct(s string) error {
	t := p.peek()
	if t.Kind != lexer.Punct || t.Text != s {
		return fmt.Errorf("parser: expected %q, got %q", s, t.Text)
	}
	p.pos++
	return nil
}

func (p *Parser) expectIdent() (string, error) {
	t := p.peek()
	if t.Kind != lexer.Ident {
		return "", fmt.Errorf("parser: expected identifier, got %q", t.Text)
	}
	p.pos++
	return t.Text, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch {
	case p.atKeyword("CREATE"):
		return p.parseCreate()
	case p.atKeyword("DROP"):
		return p.parseDrop()
	case p.atKeyword("INSERT"):
		return p.parseInsert()
	case p.atKeyword("SELECT"):
		return p.parseSelect()
	case p.atKeyword("UPDATE"):
		return p.parseUpdate()
	case p.atKeyword("DELETE"):
		return p.parseDelete()
	case p.atKeyword("VACUUM"):
		return p.parseVacuum()
	case p.atKeyword("ALTER"):
		return p.parseAlter()
	default:
		return nil, fmt.Errorf("parser: unexpected token %q", p.peek().Text)
	}
}

func (p *Parser) parseCreate() (ast.Statement, error) {
	p.advance() // CREATE
	switch {
	case p.atKeyword("TABLE"):
		return p.parseCreateTable()
	case p.atKeyword("INDEX"):
		return p.parseCreateIndex()
	default:
		return nil, fmt.Errorf("parser: expected TABLE or INDEX after CREATE, got %q", p.peek().Text)
	}
}

func (p *Parser) parseCreateTable() (ast.Statement, error) {
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}

	var cols []ast.ColumnDef
	seen := make(map[string]bool)
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("parser: duplicate column name %q", col.Name)
		}
		seen[col.Name] = true
		cols = append(cols, col)
		if p.peek().Kind == lexer.Punct && p.peek().Text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return ast.CreateTableStmt{Table: name, Columns: cols}, nil
}

func (p *Parser) parseColumnDef() (ast.ColumnDef, error) {
	name, err := p.expectIdent()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	typTok := p.advance()
	if typTok.Kind != lexer.Keyword {
		return ast.ColumnDef{}, fmt.Errorf("parser: expected column type, got %q", typTok.Text)
	}
	colType, err := types.ParseColumnType(typTok.Text)
	if err != nil {
		return ast.ColumnDef{}, err
	}

	def := ast.ColumnDef{Name: name, Type: colType}
	for {
		switch {
		case p.atKeyword("NOT"):
			p.advance()
			if err := p.expectKeyword("NULL"); err != nil {
				return ast.ColumnDef{}, err
			}
			def.Constraints = append(def.Constraints, types.Constraint{Kind: types.NotNull})
		case p.atKeyword("DEFAULT"):
			p.advance()
			v, err := p.parseLiteral()
			if err != nil {
				return ast.ColumnDef{}, err
			}
			def.Constraints = append(def.Constraints, types.Constraint{Kind: types.Default, Default: v})
		case p.atKeyword("CHECK"):
			p.advance()
			if err := p.expectPunct("("); err != nil {
				return ast.ColumnDef{}, err
			}
			checkCol, err := p.expectIdent() // the column name inside CHECK(col op lit); must match def.Name
			if err != nil {
				return ast.ColumnDef{}, err
			}
			if checkCol != name {
				return ast.ColumnDef{}, fmt.Errorf("parser: CHECK on column %q references column %q", name, checkCol)
			}
			op, err := p.parseCmpOp()
			if err != nil {
				return ast.ColumnDef{}, err
			}
			v, err := p.parseLiteral()
			if err != nil {
				return ast.ColumnDef{}, err
			}
			if err := p.expectPunct(")"); err != nil {
				return ast.ColumnDef{}, err
			}
			def.Constraints = append(def.Constraints, types.Constraint{Kind: types.Check, CheckOp: op, CheckOn: v})
		default:
			return def, nil
		}
	}
}

func (p *Parser) parseCmpOp() (types.CmpOp, error) {
	t := p.advance()
	switch t.Text {
	case "=":
		return types.Eq, nil
	case "!=":
		return types.Neq, nil
	case "<":
		return types.Lt, nil
	case "<=":
		return types.Lte, nil
	case ">":
		return types.Gt, nil
	case ">=":
		return types.Gte, nil
	default:
		return 0, fmt.Errorf("parser: expected comparison operator, got %q", t.Text)
	}
}

func (p *Parser) parseLiteral() (any, error) {
	t := p.advance()
	switch t.Kind {
	case lexer.String:
		return t.Text, nil
	case lexer.Number:
		if strings.Contains(t.Text, ".") {
			f, err := strconv.ParseFloat(t.Text, 64)
			return f, err
		}
		i, err := strconv.ParseInt(t.Text, 10, 64)
		return i, err
	case lexer.Keyword:
		if t.Text == "NULL" {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("parser: expected literal, got %q", t.Text)
}

func (p *Parser) parseCreateIndex() (ast.Statement, error) {
	if err := p.expectKeyword("INDEX"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	col, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return ast.CreateIndexStmt{Table: table, Column: col}, nil
}

func (p *Parser) parseDrop() (ast.Statement, error) {
	p.advance() // DROP
	switch {
	case p.atKeyword("TABLE"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.DropTableStmt{Table: name}, nil
	case p.atKeyword("INDEX"):
		p.advance()
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		table, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.DropIndexStmt{Table: table, Column: col}, nil
	default:
		return nil, fmt.Errorf("parser: expected TABLE or INDEX after DROP, got %q", p.peek().Text)
	}
}

func (p *Parser) parseInsert() (ast.Statement, error) {
	p.advance() // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	var cols []string
	if p.peek().Kind == lexer.Punct && p.peek().Text == "(" {
		p.advance()
		for {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if p.peek().Text == "," {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var values []any
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.peek().Text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return ast.InsertStmt{Table: table, Columns: cols, Values: values}, nil
}

func (p *Parser) parseSelect() (ast.Statement, error) {
	p.advance() // SELECT
	var cols []string
	if p.peek().Kind == lexer.Punct && p.peek().Text == "*" {
		p.advance()
	} else {
		for {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if p.peek().Text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	pred, err := p.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	return ast.SelectStmt{Table: table, Columns: cols, Where: pred}, nil
}

func (p *Parser) parseOptionalWhere() (*types.Predicate, error) {
	if !p.atKeyword("WHERE") {
		return nil, nil
	}
	p.advance()
	col, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("IS") {
		p.advance()
		if p.atKeyword("NOT") {
			p.advance()
			if err := p.expectKeyword("NULL"); err != nil {
				return nil, err
			}
			return &types.Predicate{Column: col, Op: types.IsNotNull}, nil
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &types.Predicate{Column: col, Op: types.IsNull}, nil
	}
	op, err := p.parseCmpOp()
	if err != nil {
		return nil, err
	}
	v, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &types.Predicate{Column: col, Op: op, Value: v}, nil
}

func (p *Parser) parseUpdate() (ast.Statement, error) {
	p.advance() // UPDATE
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	var sets []ast.AssignExpr
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		sets = append(sets, ast.AssignExpr{Column: col, Value: v})
		if p.peek().Text == "," {
			p.advance()
			continue
		}
		break
	}
	pred, err := p.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	return ast.UpdateStmt{Table: table, Sets: sets, Where: pred}, nil
}

func (p *Parser) parseDelete() (ast.Statement, error) {
	p.advance() // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	pred, err := p.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	return ast.DeleteStmt{Table: table, Where: pred}, nil
}

func (p *Parser) parseVacuum() (ast.Statement, error) {
	p.advance() // VACUUM
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return ast.VacuumStmt{Table: table}, nil
}

func (p *Parser) parseAlter() (ast.Statement, error) {
	p.advance() // ALTER
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	switch {
	case p.atKeyword("RENAME"):
		p.advance()
		if p.atKeyword("COLUMN") {
			p.advance()
			old, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectKeyword("TO"); err != nil {
				return nil, err
			}
			nw, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return ast.AlterTableStmt{Table: table, Kind: ast.AlterRenameColumn, OldColumn: old, NewColumn: nw}, nil
		}
		if err := p.expectKeyword("TO"); err != nil {
			return nil, err
		}
		nw, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.AlterTableStmt{Table: table, Kind: ast.AlterRenameTable, NewName: nw}, nil

	case p.atKeyword("ADD"):
		p.advance()
		if p.atKeyword("COLUMN") {
			p.advance()
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			var def any
			for _, c := range col.Constraints {
				if c.Kind == types.Default {
					def = c.Default
				}
			}
			return ast.AlterTableStmt{Table: table, Kind: ast.AlterAddColumn, AddColumn: col, DefaultValue: def}, nil
		}
		if err := p.expectKeyword("CONSTRAINT"); err != nil {
			return nil, err
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		c, err := p.parseConstraintBody()
		if err != nil {
			return nil, err
		}
		return ast.AlterTableStmt{Table: table, Kind: ast.AlterAddConstraint, OldColumn: col, Constraint: c}, nil

	case p.atKeyword("DROP"):
		p.advance()
		if p.atKeyword("COLUMN") {
			p.advance()
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return ast.AlterTableStmt{Table: table, Kind: ast.AlterDropColumn, OldColumn: col}, nil
		}
		if err := p.expectKeyword("CONSTRAINT"); err != nil {
			return nil, err
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		c, err := p.parseConstraintBody()
		if err != nil {
			return nil, err
		}
		return ast.AlterTableStmt{Table: table, Kind: ast.AlterDropConstraint, OldColumn: col, Constraint: c}, nil

	default:
		return nil, fmt.Errorf("parser: unexpected ALTER TABLE clause %q", p.peek().Text)
	}
}

func (p *Parser) parseConstraintBody() (types.Constraint, error) {
	switch {
	case p.atKeyword("NOT"):
		p.advance()
		if err := p.expectKeyword("NULL"); err != nil {
			return types.Constraint{}, err
		}
		return types.Constraint{Kind: types.NotNull}, nil
	case p.atKeyword("CHECK"):
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return types.Constraint{}, err
		}
		if _, err := p.expectIdent(); err != nil {
			return types.Constraint{}, err
		}
		op, err := p.parseCmpOp()
		if err != nil {
			return types.Constraint{}, err
		}
		v, err := p.parseLiteral()
		if err != nil {
			return types.Constraint{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return types.Constraint{}, err
		}
		return types.Constraint{Kind: types.Check, CheckOp: op, CheckOn: v}, nil
	default:
		return types.Constraint{}, fmt.Errorf("parser: unexpected constraint clause %q", p.peek().Text)
	}
}
