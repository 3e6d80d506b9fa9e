package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// Answers are the values asked for by Setup.
type Answers struct {
	SecretToken string
	User        string
	APIURL      string
	JiraURL     string
	ProjectIDs  []int
}

// Setup asks for the essential settings on in and writes them to
// configPath. An existing file is only replaced when force is set; it
// reports whether a file was written.
func Setup(in io.Reader, out io.Writer, configPath string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration already exists at %s, use --force to replace it\n", configPath)
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("failed to check %s: %w", configPath, err)
		}
	}

	answers, err := Ask(in, out)
	if err != nil {
		return false, err
	}
	if err := WriteAnswers(configPath, answers); err != nil {
		return false, err
	}
	fmt.Fprintf(out, "Configuration written to %s\n", configPath)
	return true, nil
}

// Ask prompts for each answer in turn.
func Ask(in io.Reader, out io.Writer) (Answers, error) {
	scanner := bufio.NewScanner(in)
	prompt := func(label string) (string, error) {
		fmt.Fprintf(out, "%s: ", label)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("failed to read %s: %w", label, err)
			}
			return "", fmt.Errorf("failed to read %s: %w", label, io.ErrUnexpectedEOF)
		}
		return strings.TrimSpace(scanner.Text()), nil
	}

	var (
		a   Answers
		err error
	)
	if a.SecretToken, err = prompt("GitLab API token"); err != nil {
		return Answers{}, err
	}
	if a.User, err = prompt("Username"); err != nil {
		return Answers{}, err
	}
	if a.APIURL, err = prompt("API URL"); err != nil {
		return Answers{}, err
	}
	if a.JiraURL, err = prompt("Jira URL"); err != nil {
		return Answers{}, err
	}
	ids, err := prompt("Project IDs (space-separated)")
	if err != nil {
		return Answers{}, err
	}
	if a.ProjectIDs, err = ParseProjectIDs(ids); err != nil {
		return Answers{}, err
	}
	return a, nil
}

// ParseProjectIDs parses a whitespace separated list of project ids.
func ParseProjectIDs(s string) ([]int, error) {
	fields := strings.Fields(s)
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid project id %q", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// WriteAnswers stores answers as TOML at configPath.
func WriteAnswers(configPath string, a Answers) error {
	ids := make([]interface{}, len(a.ProjectIDs))
	for i, id := range a.ProjectIDs {
		ids[i] = int64(id)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"secret_token": a.SecretToken,
		"user":         a.User,
		"api_url":      a.APIURL,
		"jira_url":     a.JiraURL,
		"project_ids":  ids,
	}, "."), nil); err != nil {
		return fmt.Errorf("failed to build configuration: %w", err)
	}

	data, err := k.Marshal(toml.Parser())
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(configPath, data, 0600)
}
