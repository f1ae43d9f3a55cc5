package cli

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zurustar/letterbox/pkg/logger"
	"github.com/zurustar/letterbox/pkg/script"
	"github.com/zurustar/letterbox/pkg/vm"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	ScriptPath string        // 実行するスクリプトファイル（空ならREPL）
	Inputs     []string      // G命令で読む入力
	LoopLimit  int           // ループ回数とExecuteのネストの上限（0以下は無制限）
	Timeout    time.Duration // タイムアウト時間（0は無制限）
	LogLevel   string        // ログレベル（debug, info, warn, error）
	Encoding   string        // スクリプトファイルのエンコーディング
	ConfigFile string        // 実行設定ファイル（YAML）
	Check      bool          // 実行せずに不正な命令だけを報告する
	ShowHelp   bool          // ヘルプ表示フラグ
}

// FileConfig は --config で指定するYAMLファイルの内容
type FileConfig struct {
	Inputs    []string `yaml:"inputs"`
	LoopLimit *int     `yaml:"loop_limit"`
	Timeout   *int     `yaml:"timeout"` // 秒
	LogLevel  string   `yaml:"log_level"`
	Encoding  string   `yaml:"encoding"`
}

// stringList は繰り返し指定できるフラグ
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// boolFlags は値を取らないフラグ
var boolFlags = map[string]bool{
	"-h":      true,
	"--h":     true,
	"-help":   true,
	"--help":  true,
	"-check":  true,
	"--check": true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
// 優先順位: コマンドラインフラグ > 設定ファイル > 環境変数 > デフォルト値
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("letterbox", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		timeoutSec int
		loopLimit  int
		logLevel   string
		encoding   string
		inputs     stringList
		config     = &Config{}
	)
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&logLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&logLevel, "l", "info", "ログレベル（短縮形）")
	fs.IntVar(&loopLimit, "loop-limit", vm.DefaultLoopLimit, "ループ回数の上限")
	fs.StringVar(&encoding, "encoding", script.DefaultEncoding, "スクリプトのエンコーディング")
	fs.StringVar(&encoding, "e", script.DefaultEncoding, "スクリプトのエンコーディング（短縮形）")
	fs.Var(&inputs, "input", "入力値（複数指定可）")
	fs.Var(&inputs, "i", "入力値（短縮形）")
	fs.StringVar(&config.ConfigFile, "config", "", "実行設定ファイル（YAML）")
	fs.StringVar(&config.ConfigFile, "c", "", "実行設定ファイル（短縮形）")
	fs.BoolVar(&config.Check, "check", false, "構文チェックのみ")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 明示的に指定されたフラグを記録
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	// デフォルト値
	config.LoopLimit = vm.DefaultLoopLimit
	config.LogLevel = "info"
	config.Encoding = script.DefaultEncoding
	timeout := 0

	// 環境変数
	applyEnv(config, &timeout)

	// 設定ファイル
	if config.ConfigFile != "" {
		fc, err := LoadFile(config.ConfigFile)
		if err != nil {
			return nil, err
		}
		fc.apply(config, &timeout)
	}

	// コマンドラインフラグ
	if set["timeout"] || set["t"] {
		timeout = timeoutSec
	}
	if set["log-level"] || set["l"] {
		config.LogLevel = logLevel
	}
	if set["loop-limit"] {
		config.LoopLimit = loopLimit
	}
	if set["encoding"] || set["e"] {
		config.Encoding = encoding
	}

	// 位置引数: スクリプトファイルと入力
	// コマンドラインの入力があれば設定ファイルの入力より優先する
	var cliInputs []string
	cliInputs = append(cliInputs, inputs...)
	if fs.NArg() > 0 {
		config.ScriptPath = fs.Arg(0)
		cliInputs = append(cliInputs, fs.Args()[1:]...)
	}
	if len(cliInputs) > 0 {
		config.Inputs = cliInputs
	}

	// タイムアウトの検証
	if timeout < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeout)
	}
	config.Timeout = time.Duration(timeout) * time.Second

	// ログレベルの検証
	config.LogLevel = strings.ToLower(config.LogLevel)
	if _, err := logger.ParseLevel(config.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	// エンコーディングの検証
	if _, err := script.LookupEncoding(config.Encoding); err != nil {
		return nil, err
	}

	if config.Check && config.ScriptPath == "" && !config.ShowHelp {
		return nil, errors.New("--check requires a script file")
	}

	return config, nil
}

// applyEnv 環境変数からの設定
// 不正な値は無視する
func applyEnv(config *Config, timeout *int) {
	if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
		if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
			*timeout = t
		}
	}
	if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
		config.LogLevel = strings.ToLower(logLevelEnv)
	}
	if limitEnv := os.Getenv("LETTERBOX_LOOP_LIMIT"); limitEnv != "" {
		if n, err := strconv.Atoi(limitEnv); err == nil {
			config.LoopLimit = n
		}
	}
	if encodingEnv := os.Getenv("LETTERBOX_ENCODING"); encodingEnv != "" {
		config.Encoding = encodingEnv
	}
}

// LoadFile YAMLの実行設定ファイルを読み込む
// 未知のキーはエラーにする。
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile YAMLの実行設定を解析する
func ParseFile(data []byte) (*FileConfig, error) {
	fc := &FileConfig{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return fc, nil
}

// apply 設定ファイルの値をConfigに反映する
func (fc *FileConfig) apply(config *Config, timeout *int) {
	if len(fc.Inputs) > 0 {
		config.Inputs = append([]string(nil), fc.Inputs...)
	}
	if fc.LoopLimit != nil {
		config.LoopLimit = *fc.LoopLimit
	}
	if fc.Timeout != nil {
		*timeout = *fc.Timeout
	}
	if fc.LogLevel != "" {
		config.LogLevel = fc.LogLevel
	}
	if fc.Encoding != "" {
		config.Encoding = fc.Encoding
	}
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
// "--" 以降はすべて位置引数として扱う（"-5" のような負の数の入力用）。
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 1 && arg[0] == '-' {
			flags = append(flags, arg)

			// -t 5 のように次の引数が値である場合
			if strings.Contains(arg, "=") || boolFlags[arg] {
				continue
			}
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// flag パッケージは最初の位置引数で解析を止めるため、"--" で区切る
	if len(positional) > 0 {
		flags = append(flags, "--")
	}
	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `letterbox - Letterbox Interpreter

Usage:
  letterbox [options] [script [inputs...]]

Arguments:
  script        実行するLetterboxスクリプトファイル（省略時は対話モード）
  inputs        G命令で読み込む入力値（0番から順に）

Options:
  -i, --input <value>         入力値を追加（複数指定可、負の数は --input=-5）
  --loop-limit <n>            ループ回数とExecuteのネストの上限（0以下で無制限、デフォルト: %d）
  -t, --timeout <seconds>     指定秒数後に実行を中止（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  -e, --encoding <name>       スクリプトのエンコーディング（デフォルト: utf-8、例: shift_jis）
  -c, --config <file>         実行設定ファイル（YAML）
  --check                     実行せずに不正な命令を報告
  -h, --help                  このヘルプを表示

Config File (YAML):
  inputs: ["1", "2"]
  loop_limit: 1000
  timeout: 10
  log_level: debug
  encoding: shift_jis

Environment Variables:
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル
  LETTERBOX_LOOP_LIMIT=<n>    ループ回数の上限
  LETTERBOX_ENCODING=<name>   スクリプトのエンコーディング

Examples:
  letterbox                       対話モード
  letterbox add.lb 1 2            入力 "1" "2" で add.lb を実行
  letterbox add.lb -- -1 -2       負の数を入力
  letterbox --check add.lb        不正な命令をチェック
  letterbox -c run.yaml add.lb    設定ファイルを使って実行
`, vm.DefaultLoopLimit)
}
