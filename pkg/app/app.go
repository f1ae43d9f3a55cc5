// Package app は letterbox コマンドのメインロジックを実装する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/zurustar/letterbox/pkg/cli"
	"github.com/zurustar/letterbox/pkg/compiler"
	"github.com/zurustar/letterbox/pkg/compiler/ast"
	"github.com/zurustar/letterbox/pkg/logger"
	"github.com/zurustar/letterbox/pkg/script"
	"github.com/zurustar/letterbox/pkg/vm"
)

// ErrCheckFailed --check で不正な命令が見つかった場合のエラー
var ErrCheckFailed = errors.New("illegal instructions found")

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config *cli.Config
	log    *slog.Logger

	stdout io.Writer
	stderr io.Writer

	// newLineReader 対話モードの行入力を作成する
	newLineReader func() (LineReader, error)
}

// Option Applicationの設定を変更する
type Option func(*Application)

// WithLineReader 対話モードで使う行入力を差し替える
func WithLineReader(newLineReader func() (LineReader, error)) Option {
	return func(app *Application) {
		app.newLineReader = newLineReader
	}
}

// New Applicationを作成
// プログラムの出力はstdoutに、ログと診断はstderrに書く。
func New(stdout, stderr io.Writer, opts ...Option) *Application {
	app := &Application{
		stdout:        stdout,
		stderr:        stderr,
		newLineReader: newLinerReader,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// ScriptError はスクリプトの実行エラーとエラー位置周辺のソースを保持する
type ScriptError struct {
	Err     error
	Context string
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	if e.Context == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + "\n" + strings.TrimRight(e.Context, "\n")
}

// Unwrap returns the underlying error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp(app.stdout)
		return nil
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Debug("Application started",
		"script", app.config.ScriptPath,
		"inputs", len(app.config.Inputs),
		"loopLimit", app.config.LoopLimit,
		"timeout", app.config.Timeout)

	// 3. モードごとの実行
	switch {
	case app.config.Check:
		return app.checkScript()
	case app.config.ScriptPath != "":
		return app.runScript()
	default:
		return app.runREPL()
	}
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLoggerWithWriter(app.config.LogLevel, app.stderr); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// loadScript スクリプトファイルを読み込む
func (app *Application) loadScript() (*script.Script, error) {
	loader, err := script.NewLoader(app.config.Encoding)
	if err != nil {
		return nil, err
	}
	s, err := loader.Load(app.config.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	app.log.Debug("Script loaded", "name", s.FileName, "size", s.Size, "encoding", s.Encoding)
	return s, nil
}

// runScript スクリプトファイルを実行し、出力を表示する
// 失敗した場合もそれまでの出力は表示する。
func (app *Application) runScript() error {
	s, err := app.loadScript()
	if err != nil {
		return err
	}

	ctx, cancel := app.runContext()
	defer cancel()

	out, runErr := app.execute(ctx, s.Content, vm.NewStore())
	if out != "" {
		fmt.Fprintln(app.stdout, out)
	}
	if runErr != nil {
		app.log.Debug("Script failed", "name", s.FileName, "error", runErr)
		return runErr
	}

	app.log.Debug("Script finished", "name", s.FileName)
	return nil
}

// checkScript 実行せずに不正な命令をすべて報告する
func (app *Application) checkScript() error {
	s, err := app.loadScript()
	if err != nil {
		return err
	}

	errs := compiler.Check(s.Content)
	for _, ce := range errs {
		fmt.Fprintf(app.stderr, "%s: %v\n", s.FileName, ce)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s: %d %w", s.FileName, len(errs), ErrCheckFailed)
	}

	fmt.Fprintf(app.stdout, "%s: ok\n", s.FileName)
	return nil
}

// execute ソースをstoreに対して実行し、出力バッファの内容を返す
func (app *Application) execute(ctx context.Context, source string, store *vm.Store) (string, error) {
	var out strings.Builder
	program, err := vm.NewFromSource(source, store, app.config.Inputs, &out, app.config.LoopLimit,
		vm.WithLogger(app.log),
		vm.WithContext(ctx),
	)
	if err != nil {
		return "", err
	}
	if err := program.Run(); err != nil {
		return out.String(), describeError(err)
	}
	return out.String(), nil
}

// runContext タイムアウトが指定されていればその時間で打ち切るコンテキストを返す
func (app *Application) runContext() (context.Context, context.CancelFunc) {
	if app.config.Timeout > 0 {
		return context.WithTimeout(context.Background(), app.config.Timeout)
	}
	return context.WithCancel(context.Background())
}

// describeError 実行時エラーに失敗した命令の周辺のソースを付け加える
func describeError(err error) error {
	var rt *vm.RuntimeError
	if !errors.As(err, &rt) || rt.Instr == nil || rt.Source == "" {
		return err
	}

	if il, ok := rt.Instr.(*ast.Illegal); ok {
		ce := compiler.DescribeIllegal(rt.Source, il)
		return &ScriptError{Err: err, Context: ce.Context}
	}

	line, column := rt.Instr.Position()
	return &ScriptError{Err: err, Context: compiler.GenerateErrorContext(rt.Source, line, column)}
}
