package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/zurustar/letterbox/pkg/vm"
)

const (
	historyFile = ".letterbox_history"
	prompt      = "> "
	banner      = "Letterbox interactive mode. Type quit to exit, :vars to list variables, :reset to clear them."
)

// LineReader 対話モードの行入力
type LineReader interface {
	// Prompt プロンプトを表示して1行読む。入力の終わりでは io.EOF を返す。
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// linerReader peterh/liner による行入力（履歴ファイル付き）
type linerReader struct {
	state    *liner.State
	histPath string
}

func newLinerReader() (LineReader, error) {
	ln := liner.NewLiner()
	ln.SetCtrlCAborts(true)

	r := &linerReader{state: ln}
	if home, err := os.UserHomeDir(); err == nil {
		r.histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(r.histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	return r, nil
}

func (r *linerReader) Prompt(p string) (string, error) {
	line, err := r.state.Prompt(p)
	if errors.Is(err, liner.ErrPromptAborted) {
		// Ctrl-C は入力中の行だけを破棄する
		return "", nil
	}
	return line, err
}

func (r *linerReader) AppendHistory(line string) {
	r.state.AppendHistory(line)
}

func (r *linerReader) Close() error {
	if r.histPath != "" {
		if f, err := os.Create(r.histPath); err == nil {
			_, _ = r.state.WriteHistory(f)
			_ = f.Close()
		}
	}
	return r.state.Close()
}

// runREPL 対話モード
// すべての行で同じ変数ストアを使う。エラーが起きても対話は続ける。
func (app *Application) runREPL() error {
	reader, err := app.newLineReader()
	if err != nil {
		return fmt.Errorf("failed to start interactive mode: %w", err)
	}
	defer reader.Close()

	fmt.Fprintln(app.stdout, banner)

	store := vm.NewStore()
	for {
		line, err := reader.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(app.stdout)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read line: %w", err)
		}

		code := strings.TrimSpace(line)
		if code == "" {
			continue
		}
		reader.AppendHistory(code)

		switch strings.ToLower(code) {
		case "quit", ":quit":
			return nil
		case ":vars":
			app.printVars(store)
			continue
		case ":reset":
			store.ResetAll()
			continue
		}
		if strings.HasPrefix(code, ":") {
			fmt.Fprintf(app.stdout, "unknown command %s. Type quit to exit.\n", code)
			continue
		}

		app.evalLine(line, store)
	}
}

// evalLine 1行を実行して出力を表示する
func (app *Application) evalLine(line string, store *vm.Store) {
	ctx, cancel := app.runContext()
	defer cancel()

	out, err := app.execute(ctx, line, store)
	if out != "" {
		fmt.Fprintln(app.stdout, out)
	}
	if err != nil {
		fmt.Fprintf(app.stderr, "Error: %v\n", err)
	}
}

// printVars 値を持つ変数を名前順に表示する
func (app *Application) printVars(store *vm.Store) {
	if store.Len() == 0 {
		fmt.Fprintln(app.stdout, "(no variables)")
		return
	}
	for _, name := range store.Names() {
		v, _ := store.Get(name)
		if s, ok := v.Str(); ok {
			fmt.Fprintf(app.stdout, "%s = '%s'\n", name, s)
		} else {
			fmt.Fprintf(app.stdout, "%s = %s\n", name, v)
		}
	}
}
