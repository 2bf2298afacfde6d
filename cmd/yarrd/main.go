package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/daniilsunyaev/yarrd/internal/config"
	"github.com/daniilsunyaev/yarrd/internal/engine"
	"github.com/daniilsunyaev/yarrd/internal/executor"
)

// ---- History (own file) ----

type History struct {
	path  string
	lines []string
}

func NewHistory(path string) *History {
	return &History{path: path}
}

func (h *History) Load(max int) error {
	if h.path == "" {
		return nil
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		h.lines = append(h.lines, s)
		if max > 0 && len(h.lines) > max {
			h.lines = h.lines[len(h.lines)-max:]
		}
	}
	return sc.Err()
}

func (h *History) Append(stmt string) error {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" || h.path == "" {
		return nil
	}
	stmt = compactOneLine(stmt)

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, stmt); err != nil {
		return err
	}
	h.lines = append(h.lines, stmt)
	return nil
}

func (h *History) Print(last int) {
	if last <= 0 || last > len(h.lines) {
		last = len(h.lines)
	}
	start := len(h.lines) - last
	if start < 0 {
		start = 0
	}
	for i := start; i < len(h.lines); i++ {
		fmt.Printf("%5d  %s\n", i+1, h.lines[i])
	}
}

func compactOneLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == ' ' {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// statementComplete checks whether buf ends with a terminating ';'
// outside a double-quoted string literal.
func statementComplete(buf string) bool {
	inQuote := false
	for _, r := range buf {
		if r == '"' {
			inQuote = !inQuote
			continue
		}
		if r == ';' && !inQuote {
			return true
		}
	}
	return false
}

func normalizeStmt(buf string) string {
	return strings.TrimSuffix(strings.TrimSpace(buf), ";")
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, ".") || line == "quit" || line == "exit"
}

func printResult(res *executor.Result) {
	if len(res.Columns) == 0 {
		fmt.Printf("OK (%d affected)\n", res.AffectedRows)
		return
	}

	cols := res.Columns
	rows := res.Rows

	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i := range cols {
			var s string
			if i < len(row) && row[i] != nil {
				s = fmt.Sprintf("%v", row[i])
			} else {
				s = "NULL"
			}
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Print(" | ")
			}
			fmt.Print(padRight(values[i], widths[i]))
		}
		fmt.Println()
	}

	hdr := make([]string, len(cols))
	copy(hdr, cols)
	printRow(hdr)

	for i := range cols {
		if i > 0 {
			fmt.Print("-+-")
		}
		fmt.Print(strings.Repeat("-", widths[i]))
	}
	fmt.Println()

	for _, row := range rows {
		out := make([]string, len(cols))
		for i := range cols {
			if i < len(row) && row[i] != nil {
				out[i] = fmt.Sprintf("%v", row[i])
			} else {
				out[i] = "NULL"
			}
		}
		printRow(out)
	}

	fmt.Printf("(%d rows)\n", res.AffectedRows)
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".yarrd_history"
	}
	return filepath.Join(home, ".yarrd_history")
}

// session holds the single database connection the REPL operates on at
// a time; YARRD is single-process, single-connection (spec's
// Concurrency & Resource Model).
type session struct {
	db  *engine.Database
	exe *executor.Executor
}

func (s *session) connected() bool { return s.db != nil }

func main() {
	var (
		cfgPath    = flag.String("config", "", "path to a YAML config file")
		histPath   = flag.String("history", "", "history file path (defaults to config or ~/.yarrd_history)")
		histMax    = flag.Int("history-max", 2000, "max history lines loaded into memory")
		oneShotSQL = flag.String("c", "", "execute one SQL statement and exit")
		dbDir      = flag.String("db", "", "database directory to connect to at startup")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	hp := *histPath
	if hp == "" {
		hp = cfg.History.Path
	}
	if hp == "" {
		hp = defaultHistoryPath()
	}

	sess := &session{}
	if *dbDir != "" {
		db, err := engine.Connect(*dbDir, cfg.Pager.CacheSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect: %v\n", err)
			os.Exit(1)
		}
		sess.db = db
		sess.exe = executor.New(db)
	}

	if strings.TrimSpace(*oneShotSQL) != "" {
		if !sess.connected() {
			fmt.Fprintln(os.Stderr, "error: -c requires -db")
			os.Exit(1)
		}
		res, err := sess.exe.ExecSQL(*oneShotSQL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printResult(res)
		return
	}

	h := NewHistory(hp)
	_ = h.Load(*histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "yarrd> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	var buf strings.Builder

	fmt.Println("yarrd — type .help for meta commands")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt("yarrd> ")
				continue
			}
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			if sess.connected() {
				_ = sess.db.Close()
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isMetaCommand(line) {
			switch line {
			case ".exit", ".quit", "quit", "exit":
				if sess.connected() {
					_ = sess.db.Close()
				}
				return
			}
			handleMeta(line, sess, cfg, h)
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)

		if !statementComplete(buf.String()) {
			rl.SetPrompt("   -> ")
			continue
		}

		stmt := normalizeStmt(buf.String())
		buf.Reset()
		rl.SetPrompt("yarrd> ")

		_ = h.Append(stmt)
		_ = rl.SaveHistory(compactOneLine(stmt))

		if !sess.connected() {
			fmt.Println("error: not connected; use .connect <dir> first")
			continue
		}
		res, err := sess.exe.ExecSQL(stmt)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(res)
	}
}

func handleMeta(line string, sess *session, cfg *config.Config, h *History) {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case ".createdb":
		if len(fields) != 2 {
			fmt.Println("usage: .createdb <dir>")
			return
		}
		if err := engine.CreateDatabase(fields[1]); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	case ".dropdb":
		if len(fields) != 2 {
			fmt.Println("usage: .dropdb <dir>")
			return
		}
		if err := engine.DropDatabase(fields[1]); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	case ".connect":
		if len(fields) != 2 {
			fmt.Println("usage: .connect <dir>")
			return
		}
		if sess.connected() {
			_ = sess.db.Close()
		}
		db, err := engine.Connect(fields[1], cfg.Pager.CacheSize)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		sess.db = db
		sess.exe = executor.New(db)
		fmt.Printf("connected to %s\n", fields[1])
	case ".close":
		if !sess.connected() {
			fmt.Println("not connected")
			return
		}
		if err := sess.db.Close(); err != nil {
			fmt.Printf("error: %v\n", err)
		}
		sess.db = nil
		sess.exe = nil
	case ".history":
		h.Print(50)
	case ".help":
		fmt.Println(`meta commands:
  .createdb <dir>     create a database directory
  .dropdb <dir>       delete a database directory
  .connect <dir>      open a connection to a database
  .close              close the current connection
  .history            print statement history
  .exit | .quit | quit | exit     quit

sql:
  end statement with ';' (multiline is supported, waits until ';')`)
	default:
		fmt.Printf("unknown command: %s\n", cmd)
	}
}
