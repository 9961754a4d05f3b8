package cli

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/subfeed/internal/config"
	"github.com/ppiankov/subfeed/internal/feed"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file.opml>",
	Short: "Import RSS feeds from an OPML file as subscriptions",
	Args:  cobra.ExactArgs(1),
	RunE:  importAction,
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "show what would be added without modifying config")
	rootCmd.AddCommand(importCmd)
}

type opml struct {
	Body opmlBody `xml:"body"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	XMLURL   string        `xml:"xmlUrl,attr"`
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

func importAction(_ *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read OPML: %w", err)
	}

	var doc opml
	if err := xml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse OPML: %w", err)
	}

	found := extractSubscriptions(doc.Body.Outlines)
	if len(found) == 0 {
		fmt.Fprintln(stdout, "No feed URLs found in OPML file.")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	existingURLs := make(map[string]bool)
	existingNames := make(map[string]bool)
	for _, s := range cfg.Subscriptions {
		existingURLs[s.URL] = true
		existingNames[s.Name] = true
	}

	var added []config.SubscriptionConfig
	skipped := 0
	for _, s := range found {
		if existingURLs[s.URL] {
			skipped++
			continue
		}
		if existingNames[s.Name] {
			s.Name = s.URL
		}
		existingURLs[s.URL] = true
		existingNames[s.Name] = true
		added = append(added, s)
	}

	if len(added) == 0 {
		fmt.Fprintf(stdout, "All %d feeds already present, nothing to add.\n", skipped)
		return nil
	}

	if importDryRun {
		fmt.Fprintf(stdout, "Would add %d feeds (skipping %d duplicates):\n", len(added), skipped)
		for _, s := range added {
			fmt.Fprintf(stdout, "  + %s (%s)\n", s.Name, s.URL)
		}
		return nil
	}

	path, err := config.ResolvePath(configDir)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = mergeSubscriptionsTOML(path, added)
	} else {
		err = mergeSubscriptionsYAML(path, added)
	}
	if err != nil {
		return fmt.Errorf("merge subscriptions: %w", err)
	}

	fmt.Fprintf(stdout, "Added %d feeds, skipped %d duplicates.\n", len(added), skipped)
	return nil
}

func extractSubscriptions(outlines []opmlOutline) []config.SubscriptionConfig {
	var subs []config.SubscriptionConfig
	for _, o := range outlines {
		u := strings.TrimSpace(o.XMLURL)
		if u != "" && (strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")) {
			name := strings.TrimSpace(o.Title)
			if name == "" {
				name = strings.TrimSpace(o.Text)
			}
			if name == "" {
				name = u
			}
			subs = append(subs, config.SubscriptionConfig{Name: name, URL: u, Type: string(feed.TypeRSS)})
		}
		// Recurse into nested outlines (folders)
		subs = append(subs, extractSubscriptions(o.Outlines)...)
	}
	return subs
}

// mergeSubscriptionsYAML appends subs to the top-level subscriptions
// sequence, keeping the rest of the document as written.
func mergeSubscriptionsYAML(configPath string, subs []config.SubscriptionConfig) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config YAML: %w", err)
	}

	seq := findSubscriptionsNode(&doc)
	if seq == nil {
		return fmt.Errorf("could not find subscriptions in %s", configPath)
	}

	for _, s := range subs {
		seq.Content = append(seq.Content, &yaml.Node{
			Kind: yaml.MappingNode,
			Tag:  "!!map",
			Content: []*yaml.Node{
				scalar("name"), quoted(s.Name),
				scalar("url"), quoted(s.URL),
				scalar("type"), scalar(s.Type),
			},
		})
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(configPath, out, 0o644)
}

// mergeSubscriptionsTOML rewrites a TOML config with subs appended.
// Comments in the original file are not preserved.
func mergeSubscriptionsTOML(configPath string, subs []config.SubscriptionConfig) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw config.Config
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return fmt.Errorf("parse config TOML: %w", err)
	}
	raw.Subscriptions = append(raw.Subscriptions, subs...)

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return os.WriteFile(configPath, buf.Bytes(), 0o644)
}

// findSubscriptionsNode returns the subscriptions sequence of the top-level
// mapping, or nil.
func findSubscriptionsNode(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return findSubscriptionsNode(doc.Content[0])
	}
	node := findMapValue(doc, "subscriptions")
	if node == nil || node.Kind != yaml.SequenceNode {
		return nil
	}
	return node
}

func findMapValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func quoted(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Style: yaml.DoubleQuotedStyle}
}
