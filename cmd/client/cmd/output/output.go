// Package output - цветной вывод CLI и чтение ввода с терминала.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
	headColor = color.New(color.FgCyan, color.Bold)
)

// Setup отключает цвета, когда stdout не терминал.
func Setup() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}

func Header(format string, a ...any) {
	_, _ = headColor.Printf("=== "+format+" ===\n", a...)
}

func OK(format string, a ...any) {
	_, _ = okColor.Printf("✅ "+format+"\n", a...)
}

func Warn(format string, a ...any) {
	_, _ = warnColor.Printf("⚠️  "+format+"\n", a...)
}

func Fail(format string, a ...any) {
	_, _ = errColor.Printf("❌ "+format+"\n", a...)
}

// JSON печатает значение с отступами.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Prompt читает строку из stdin.
func Prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password читает пароль без эха, если stdin - терминал.
func Password(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return Prompt(label)
	}
	fmt.Print(label)
	pw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("ошибка чтения пароля: %w", err)
	}
	return string(pw), nil
}
