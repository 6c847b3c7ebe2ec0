package admin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yanizio/geofunnel/internal/broadcast"
	"github.com/yanizio/geofunnel/internal/config"
	"github.com/yanizio/geofunnel/internal/store"
)

// FormatStats renders aggregate stats as plain text.
func FormatStats(st store.Stats) string {
	var b strings.Builder
	b.WriteString("📊 Bot statistics\n\n")
	fmt.Fprintf(&b, "👤 Active users: %d\n\n", st.TotalActive)
	b.WriteString("🌍 Users by region:\n")
	writeCounts(&b, st.ByRegion)
	fmt.Fprintf(&b, "\n🖱️ Total link clicks: %d\n\n", st.TotalClicks)
	b.WriteString("📈 Clicks by region:\n")
	writeCounts(&b, st.ClicksByRegion)
	return strings.TrimRight(b.String(), "\n")
}

func writeCounts(b *strings.Builder, rows []store.RegionCount) {
	if len(rows) == 0 {
		b.WriteString("  No data\n")
		return
	}
	for _, r := range rows {
		region := r.Region
		if region == "" {
			region = "unknown"
		}
		fmt.Fprintf(b, "  - %s: %d\n", region, r.Count)
	}
}

// FormatReport renders a finished broadcast.
func FormatReport(rep broadcast.Report) string {
	return fmt.Sprintf("✅ Broadcast finished!\nDelivered: %d\nFailed (including blocked): %d\nDeactivated: %d",
		rep.Delivered, rep.Failed, rep.Deactivated)
}

// FormatDestinations renders the region → URL table, DEFAULT last.
func FormatDestinations(dest map[string]string) string {
	regions := make([]string, 0, len(dest))
	for r := range dest {
		if r != config.DefaultRegion {
			regions = append(regions, r)
		}
	}
	sort.Strings(regions)
	if _, ok := dest[config.DefaultRegion]; ok {
		regions = append(regions, config.DefaultRegion)
	}

	var b strings.Builder
	b.WriteString("🔗 Destinations:\n")
	if len(regions) == 0 {
		b.WriteString("  No data")
		return b.String()
	}
	for _, r := range regions {
		fmt.Fprintf(&b, "  - %s: %s\n", r, dest[r])
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatUser renders one user row.
func FormatUser(u *store.User) string {
	region := "unverified"
	if u.Region.Valid && u.Region.String != "" {
		region = u.Region.String
	}
	handle := "-"
	if u.Username.Valid && u.Username.String != "" {
		handle = "@" + u.Username.String
	}
	return fmt.Sprintf("👤 %d %s\nRegion: %s\nJoined: %s\nSteps completed: %d\nLink clicks: %d\nActive: %t",
		u.ID, handle, region, u.JoinedAt.UTC().Format("2006-01-02 15:04"), u.CompletedSteps, u.LinkClicks, u.Active)
}
