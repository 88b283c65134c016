package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weave-nn/weaver/internal/core/domain"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List cached vault entries",
	Long: `List entries from the shadow cache, filtered by metadata.

Examples:
  weaver entries --kind task --status open
  weaver entries --tag project/alpha --prefix notes/
  weaver entries --link notes/index.md --json`,
	Args: cobra.NoArgs,
	RunE: runEntries,
}

var entryCmd = &cobra.Command{
	Use:   "entry <path>",
	Short: "Show one cached entry and its backlinks",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntry,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count cached entries by kind, status and tag",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	addEntryFilterFlags(entriesCmd)
	entriesCmd.Flags().Int("limit", 0, "Maximum entries per page (default 50)")
	entriesCmd.Flags().String("after", "", "Cursor from a previous page")
	entriesCmd.Flags().Bool("all", false, "Follow cursors and print every page")
	entriesCmd.Flags().Bool("json", false, "Print JSON")

	entryCmd.Flags().Bool("json", false, "Print JSON")

	addEntryFilterFlags(statsCmd)
	statsCmd.Flags().Bool("json", false, "Print JSON")

	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(entryCmd)
	rootCmd.AddCommand(statsCmd)
}

func addEntryFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("kind", "", "Filter by kind")
	cmd.Flags().String("status", "", "Filter by status")
	cmd.Flags().String("tag", "", "Filter by tag")
	cmd.Flags().String("link", "", "Filter by outbound link target")
	cmd.Flags().String("prefix", "", "Filter by path prefix")
	cmd.Flags().Bool("deleted", false, "Include tombstoned entries")
}

func entryFilterFromFlags(cmd *cobra.Command) domain.EntryFilter {
	kind, _ := cmd.Flags().GetString("kind")
	status, _ := cmd.Flags().GetString("status")
	tag, _ := cmd.Flags().GetString("tag")
	link, _ := cmd.Flags().GetString("link")
	prefix, _ := cmd.Flags().GetString("prefix")
	deleted, _ := cmd.Flags().GetBool("deleted")

	filter := domain.EntryFilter{
		Kind:           kind,
		Status:         status,
		Tag:            strings.TrimPrefix(tag, "#"),
		PathPrefix:     prefix,
		IncludeDeleted: deleted,
	}
	if link != "" {
		filter.LinkTarget = domain.NormalisePath(link)
	}
	return filter
}

func runEntries(cmd *cobra.Command, _ []string) error {
	control, err := requireControl()
	if err != nil {
		return err
	}

	filter := entryFilterFromFlags(cmd)
	limit, _ := cmd.Flags().GetInt("limit")
	after, _ := cmd.Flags().GetString("after")
	all, _ := cmd.Flags().GetBool("all")
	asJSON, _ := cmd.Flags().GetBool("json")

	page := domain.Page{After: after, Limit: limit}
	var entries []domain.VaultEntry
	var next string
	for {
		result, err := control.QueryEntries(commandContext(cmd), filter, page)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		entries = append(entries, result.Entries...)
		next = result.NextCursor
		if !all || next == "" {
			break
		}
		page.After = next
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), &domain.EntryPage{Entries: nonNilEntries(entries), NextCursor: next})
	}

	if len(entries) == 0 {
		cmd.Println("No entries found.")
		return nil
	}

	cmd.Printf("%-48s  %-10s  %-10s  %s\n", "PATH", "KIND", "STATUS", "TAGS")
	for i := range entries {
		e := &entries[i]
		path := truncate(e.Path, 48)
		if e.Deleted {
			path = truncate("(deleted) "+e.Path, 48)
		}
		cmd.Printf("%-48s  %-10s  %-10s  %s\n", path, orDash(e.Kind), orDash(e.Status), joinOrDash(e.Tags))
	}
	if next != "" {
		cmd.Printf("\nMore entries available: --after %s\n", next)
	}
	return nil
}

func runEntry(cmd *cobra.Command, args []string) error {
	control, err := requireControl()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	entry, err := control.GetEntry(ctx, args[0])
	if err != nil {
		return fmt.Errorf("entry %s: %w", args[0], err)
	}
	backlinks, err := control.Backlinks(ctx, entry.Path, domain.Page{Limit: domain.MaxPageLimit})
	if err != nil {
		return fmt.Errorf("backlinks for %s: %w", entry.Path, err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		paths := make([]string, 0, len(backlinks.Entries))
		for i := range backlinks.Entries {
			paths = append(paths, backlinks.Entries[i].Path)
		}
		return writeJSON(cmd.OutOrStdout(), struct {
			*domain.VaultEntry
			Backlinks []string `json:"backlinks"`
		}{entry, paths})
	}

	cmd.Printf("Path:      %s\n", entry.Path)
	cmd.Printf("Kind:      %s\n", orDash(entry.Kind))
	cmd.Printf("Status:    %s\n", orDash(entry.Status))
	cmd.Printf("Tags:      %s\n", joinOrDash(entry.Tags))
	cmd.Printf("Hash:      %s\n", entry.ContentHash)
	cmd.Printf("Sequence:  %d\n", entry.Sequence)
	cmd.Printf("Modified:  %s\n", formatTime(entry.LastModifiedAt))
	cmd.Printf("Seen:      %s\n", formatTime(entry.LastSeenAt))
	if entry.Deleted {
		cmd.Printf("Deleted:   %s\n", formatTime(entry.DeletedAt))
	}

	cmd.Printf("\nLinks (%d):\n", len(entry.OutboundLinks))
	for _, l := range entry.OutboundLinks {
		cmd.Printf("  -> %s\n", l)
	}
	cmd.Printf("\nBacklinks (%d):\n", len(backlinks.Entries))
	for i := range backlinks.Entries {
		cmd.Printf("  <- %s\n", backlinks.Entries[i].Path)
	}
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	control, err := requireControl()
	if err != nil {
		return err
	}

	counts, err := control.CountEntries(commandContext(cmd), entryFilterFromFlags(cmd))
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), counts)
	}

	cmd.Printf("Entries: %d (%d live, %d deleted)\n", counts.Total, counts.Live, counts.Deleted)
	printCounts(cmd, "By kind", counts.ByKind)
	printCounts(cmd, "By status", counts.ByStatus)
	printCounts(cmd, "By tag", counts.ByTag)
	return nil
}

func printCounts(cmd *cobra.Command, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	cmd.Printf("\n%s:\n", title)
	for _, k := range keys {
		cmd.Printf("  %-24s %d\n", k, counts[k])
	}
}

func nonNilEntries(entries []domain.VaultEntry) []domain.VaultEntry {
	if entries == nil {
		return []domain.VaultEntry{}
	}
	return entries
}
