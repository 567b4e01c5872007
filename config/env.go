package config

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	reExport = regexp.MustCompile(`^\s*export\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)\s*$`)
	reAssign = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)\s*$`)
)

// LoadEnv loads shell-style env files into the process environment:
//
//	export KEY=value
//	KEY="value"
//
// Variables already set in the environment are left alone. Missing files are
// skipped.
func LoadEnv(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		scan := bufio.NewScanner(f)
		for scan.Scan() {
			key, val, ok := parseLine(scan.Text())
			if !ok {
				continue
			}
			if _, set := os.LookupEnv(key); !set {
				os.Setenv(key, val)
			}
		}
		f.Close()
	}
}

// LoadDefaultEnv loads ./.env and then transcribo.env from the user config dir.
func LoadDefaultEnv() {
	LoadEnv(".env")
	if dir, err := os.UserConfigDir(); err == nil {
		LoadEnv(filepath.Join(dir, "transcribo", "transcribo.env"))
	}
}

func parseLine(line string) (key, val string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	m := reExport.FindStringSubmatch(line)
	if m == nil {
		m = reAssign.FindStringSubmatch(line)
	}
	if m == nil {
		return "", "", false
	}
	key, val = m[1], strings.TrimSpace(m[2])
	switch {
	case len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"':
		val = val[1 : len(val)-1]
		val = strings.ReplaceAll(val, `\"`, `"`)
		val = strings.ReplaceAll(val, `\\`, `\`)
	case len(val) >= 2 && val[0] == '\'' && val[len(val)-1] == '\'':
		val = val[1 : len(val)-1]
	}
	return key, val, true
}
