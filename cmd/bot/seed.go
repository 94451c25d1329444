package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"cinebot/internal/app"
	"cinebot/internal/storage"
)

// seedEntry is one record of a seed file. JSON files parse as YAML.
type seedEntry struct {
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
	TMDbID   int    `yaml:"tmdb_id"`
	Link     string `yaml:"link"`
}

// parseSeed reads entries from b. ".txt" files hold one title per line;
// blank lines and lines starting with # are skipped.
func parseSeed(name string, b []byte, category string) ([]storage.Entry, error) {
	var raw []seedEntry
	if strings.EqualFold(filepath.Ext(name), ".txt") {
		sc := bufio.NewScanner(bytes.NewReader(b))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			raw = append(raw, seedEntry{Title: line})
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(name), err)
	}

	out := make([]storage.Entry, 0, len(raw))
	for i, r := range raw {
		if strings.TrimSpace(r.Title) == "" {
			return nil, fmt.Errorf("entry %d: title is empty", i+1)
		}
		if r.Category == "" {
			r.Category = category
		}
		out = append(out, storage.Entry{Title: r.Title, Category: r.Category, CatalogBID: r.TMDbID, Link: r.Link})
	}
	return out, nil
}

func seedStore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	category, _ := cmd.Flags().GetString("category")
	entries, err := parseSeed(args[0], b, category)
	if err != nil {
		return err
	}

	store, err := app.OpenStore(cfg, cliLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := oneShotContext(cmd)
	defer cancel()
	for _, e := range entries {
		if _, err := store.Upsert(ctx, e); err != nil {
			return fmt.Errorf("upsert %q: %w", e.Title, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d entries into %s\n", len(entries), cfg.Storage.Driver)
	return nil
}
