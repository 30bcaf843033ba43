package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solacehq/solace/internal/config"
	"github.com/solacehq/solace/internal/ingest"
	"github.com/solacehq/solace/internal/storage"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask for a verse matching how you feel",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		userID, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/chat", map[string]string{
			"user_id": userID,
			"message": message,
		})
		if err != nil {
			return err
		}

		var result struct {
			VerseID   string `json:"verse_id"`
			Text      string `json:"verse_text"`
			Source    string `json:"verse_source"`
			Mood      string `json:"detected_mood"`
			Reply     string `json:"reply"`
			Generated bool   `json:"generated"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Printf("%s %s\n\n", colorize(ansiBold, "Mood:"), result.Mood)
		fmt.Println(result.Reply)
		if !result.Generated {
			fmt.Printf("\n%s\n", colorize(ansiYellow, "(template reply)"))
		}
		return nil
	},
}

// --- daily ---

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show the verse of the day",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/daily-verse"
		if userID != "" {
			path += "?user_id=" + userID
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			VerseID string `json:"verse_id"`
			Text    string `json:"verse_text"`
			Source  string `json:"verse_source"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printQuote(result.Text, result.Source, result.VerseID)
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent verse recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/history?limit=%d", limit)
		if userID != "" {
			path += "&user_id=" + userID
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var entries []struct {
			CreatedAt string `json:"created_at"`
			Mood      string `json:"mood"`
			VerseID   string `json:"verse_id"`
		}
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No history yet.")
			return nil
		}

		for _, e := range entries {
			mood := e.Mood
			if mood == "" {
				mood = "daily"
			}
			fmt.Printf("%s  %-8s  %s\n",
				e.CreatedAt,
				colorize(ansiCyan, mood),
				e.VerseID,
			)
		}
		return nil
	},
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Load a verse corpus into the engine",
	Long: `Load a verse corpus into the engine.

JSONL files are sent as-is; PDF and HTML files are split into verses
locally first, which requires --source.

Examples:
  solace ingest verses.jsonl
  solace ingest gita.pdf --source "Bhagavad Gita" --prefix Gita
  solace ingest psalms.html --source "Bible - Psalms" --prefix Psalm --replace`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		source, _ := cmd.Flags().GetString("source")
		prefix, _ := cmd.Flags().GetString("prefix")
		replace, _ := cmd.Flags().GetBool("replace")

		body, err := corpusBody(path, source, prefix)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		endpoint := "/verses"
		if replace {
			endpoint += "?replace=true"
		}
		resp, err := client.postRaw(cmd.Context(), endpoint, "application/x-ndjson", body)
		if err != nil {
			return err
		}

		var result struct {
			Ingested int    `json:"ingested"`
			Status   string `json:"status"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued %d verses for embedding", result.Ingested)
		return nil
	},
}

// corpusBody turns the input file into a JSONL stream. PDF and HTML are
// split into verses locally; JSONL passes through untouched.
func corpusBody(path, source, prefix string) (*bytes.Buffer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading corpus: %w", err)
		}
		return bytes.NewBuffer(data), nil

	case ".pdf":
		if source == "" {
			return nil, fmt.Errorf("--source is required for PDF input")
		}
		verses, err := ingest.FromPDF(path, source, prefix)
		if err != nil {
			return nil, err
		}
		return versesToJSONL(verses)

	case ".html", ".htm":
		if source == "" {
			return nil, fmt.Errorf("--source is required for HTML input")
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening file: %w", err)
		}
		defer f.Close()
		verses, err := ingest.FromHTML(f, source, prefix)
		if err != nil {
			return nil, err
		}
		return versesToJSONL(verses)

	default:
		return nil, fmt.Errorf("unsupported corpus format %q (want .jsonl, .pdf, or .html)", filepath.Ext(path))
	}
}

func versesToJSONL(verses []storage.Verse) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, v := range verses {
		line := map[string]any{
			"id":     v.ID,
			"text":   v.Text,
			"source": v.Source,
		}
		if len(v.MoodTags) > 0 {
			line["mood_tags"] = v.MoodTags
		}
		if err := enc.Encode(line); err != nil {
			return nil, err
		}
	}
	return &buf, nil
}

// --- schedule ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule <day> <verse-id>",
	Short: "Pin a verse as the daily draw for a day (YYYY-MM-DD)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, verseID := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), "/daily-verse/schedule", map[string]string{
			"day":      day,
			"verse_id": verseID,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Scheduled %s for %s", verseID, day)
		return nil
	},
}

// --- reindex ---

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild and publish the embedding index",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/reindex", nil)
		if err != nil {
			return err
		}

		var result struct {
			Indexed int `json:"indexed"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Index rebuilt with %d verses", result.Indexed)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(ansiBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("user", "", "user id for history tracking")
	dailyCmd.Flags().String("user", "", "user id")
	historyCmd.Flags().String("user", "", "user id")
	historyCmd.Flags().Int("limit", 20, "maximum number of entries")
	ingestCmd.Flags().String("source", "", "source label for PDF/HTML input")
	ingestCmd.Flags().String("prefix", "", "verse id prefix for PDF/HTML input")
	ingestCmd.Flags().Bool("replace", false, "replace the existing corpus")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
