package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	ansiRed         = 31
	ansiYellow      = 33
	ansiBlue        = 36
	ansiGray        = 37
	ansiCyan        = 96
	ansiLightYellow = 93
	ansiLightGreen  = 92
)

// GwFormatter renders colored key=value lines with a fixed field order:
// level, ts, sorted entry fields, msg.
type GwFormatter struct{}

func (f *GwFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b bytes.Buffer

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}
	writePair(&b, "level", paint(levelColor(entry.Level), level))
	writePair(&b, "ts", paint(ansiLightYellow, entry.Time.Format("2006-01-02 15:04:05.000")))
	if entry.Caller != nil {
		writePair(&b, "source", paint(ansiLightYellow, fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line)))
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writePair(&b, k, paint(ansiCyan, fmt.Sprintf("%v", entry.Data[k])))
	}

	writePair(&b, "msg", paint(ansiLightGreen, fmt.Sprintf("%q", entry.Message)))

	line := strings.NewReplacer("\r", "\\r", "\n", "\\n").Replace(b.String())
	return []byte(line + "\n"), nil
}

func levelColor(level log.Level) int {
	switch level {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		return ansiRed
	case log.WarnLevel:
		return ansiYellow
	case log.DebugLevel, log.TraceLevel:
		return ansiGray
	default:
		return ansiBlue
	}
}

func paint(color int, s string) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}

func writePair(b *bytes.Buffer, key, value string) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(paint(ansiCyan, key))
	b.WriteByte('=')
	b.WriteString(value)
}
