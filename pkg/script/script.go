// Package script は Letterbox のソースファイルを読み込み、UTF-8 に変換する。
package script

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/zurustar/letterbox/pkg/fileutil"
)

// DefaultEncoding 指定がない場合に使うエンコーディング名
const DefaultEncoding = "utf-8"

// utf8BOM UTF-8 のバイトオーダーマーク
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Script はスクリプトファイルを表す
type Script struct {
	FileName string // ファイル名
	Content  string // UTF-8に変換された内容
	Size     int64  // ファイルサイズ（変換前のバイト数）
	Encoding string // 変換元のエンコーディング名
}

// Loader はスクリプトファイルの読み込みを行う
type Loader struct {
	encodingName string
	encoding     encoding.Encoding
}

// LookupEncoding エンコーディング名（"utf-8", "shift_jis", "sjis" など）を解決する
// 名前は WHATWG Encoding Standard のラベルとして解釈する。
func LookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	return enc, nil
}

// NewLoader Loaderを作成
func NewLoader(encodingName string) (*Loader, error) {
	enc, err := LookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	return &Loader{
		encodingName: strings.ToLower(encodingName),
		encoding:     enc,
	}, nil
}

// EncodingName 変換元のエンコーディング名を返す
func (l *Loader) EncodingName() string {
	return l.encodingName
}

// Load 単一のスクリプトファイルを読み込む
// ファイル名の大文字小文字が一致しない場合も見つける。
func (l *Loader) Load(path string) (*Script, error) {
	path, err := fileutil.ResolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	// ファイル情報を取得
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	script, err := l.Read(filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	script.Size = info.Size()
	return script, nil
}

// Read リーダーからスクリプトを読み込み、UTF-8に変換する
func (l *Loader) Read(name string, r io.Reader) (*Script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	content, err := l.decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert encoding of %s: %w", name, err)
	}

	return &Script{
		FileName: name,
		Content:  content,
		Size:     int64(len(data)),
		Encoding: l.encodingName,
	}, nil
}

// decode 設定されたエンコーディングからUTF-8に変換
func (l *Loader) decode(data []byte) (string, error) {
	// 先頭のBOMは命令ではないので取り除く
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := transform.NewReader(bytes.NewReader(data), l.encoding.NewDecoder())
	utf8Data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(utf8Data), nil
}
