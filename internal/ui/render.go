package ui

import (
	"fmt"
	"strings"

	"github.com/vbonduro/shelfshot/internal/app"
	"github.com/vbonduro/shelfshot/internal/domain"
)

const activityLines = 5

// Render draws the state as plain text.
func Render(s *app.State) string {
	var b strings.Builder
	renderHeader(&b, s)

	switch m := s.Modal.(type) {
	case *app.Help:
		b.WriteString(helpText)
		return b.String()
	case *app.ProductPicker:
		fmt.Fprintf(&b, "find product: %s_\n", m.Search)
		for i, p := range m.Matches(s.Products) {
			fmt.Fprintf(&b, "%s %s %s\n", cursor(i == m.Selected), p.SKUAlias, p.DisplayName)
		}
		return b.String()
	}

	switch s.Tab {
	case app.TabHome:
		renderHome(&b, s)
	case app.TabProducts:
		if s.Mode == app.ModeGrid {
			renderGrid(&b, s)
		} else {
			renderWorkspace(&b, s)
		}
	case app.TabActivity:
		renderActivity(&b, s.Activity, len(s.Activity))
	case app.TabSettings:
		for i, label := range app.SettingsLabels() {
			fmt.Fprintf(&b, "%s %-20s %s\n", cursor(i == s.SettingsSelected), label, s.SettingsValue(i))
		}
	}

	if buf, ok := editBuffer(s.Modal); ok {
		fmt.Fprintf(&b, "--- edit ---\n%s_\n", buf)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHeader(b *strings.Builder, s *app.State) {
	for _, t := range []app.Tab{app.TabHome, app.TabProducts, app.TabActivity, app.TabSettings} {
		if t == s.Tab {
			fmt.Fprintf(b, "[%s] ", t)
		} else {
			fmt.Fprintf(b, " %s  ", t)
		}
	}
	b.WriteString("\n")
	if s.Toast != nil {
		fmt.Fprintf(b, "%s %s\n", severityTag(s.Toast.Severity), s.Toast.Message)
	}
	if c, ok := s.Modal.(*app.DeleteConfirm); ok {
		fmt.Fprintf(b, "delete %s? [y/n]\n", c.SKUAlias)
	}
}

func renderHome(b *strings.Builder, s *app.State) {
	camera := "disconnected"
	if s.CameraConnected {
		camera = fmt.Sprintf("device %d %dx%d %.1f fps, %d dropped",
			s.Status.DeviceIndex, s.Status.Width, s.Status.Height, s.Status.FPS, s.Status.DroppedFrames)
	}
	fmt.Fprintf(b, "camera:  %s\n", camera)
	fmt.Fprintf(b, "preview: %s\n", onOff(s.PreviewEnabled))
	if s.Product != nil {
		fmt.Fprintf(b, "product: %s %s\n", s.Product.SKUAlias, s.Product.DisplayName)
	}
	if s.Session != nil {
		fmt.Fprintf(b, "session: %s (%d frames)\n", s.Session.SessionID, len(s.Session.Frames))
	}
	if s.LastCapture != "" {
		fmt.Fprintf(b, "last capture: %s\n", s.LastCapture)
	}
	if s.LastCommit != "" {
		fmt.Fprintf(b, "last commit: %s\n", s.LastCommit)
	}
	if s.LastError != "" {
		fmt.Fprintf(b, "last error: %s\n", s.LastError)
	}
	for _, j := range s.Uploads {
		fmt.Fprintf(b, "upload %s %s\n", j.RelPath, j.Status)
	}
	renderActivity(b, s.Activity, activityLines)
}

func renderGrid(b *strings.Builder, s *app.State) {
	if len(s.Products) == 0 {
		b.WriteString("no products (n to create)\n")
		return
	}
	for i, p := range s.Products {
		fmt.Fprintf(b, "%s %-14s %2d img", cursor(i == s.GridSelected), p.SKUAlias, p.ImageCount)
		if (i+1)%3 == 0 || i == len(s.Products)-1 {
			b.WriteString("\n")
		} else {
			b.WriteString("  ")
		}
	}
}

func renderWorkspace(b *strings.Builder, s *app.State) {
	for _, t := range []app.SubTab{app.SubTabContext, app.SubTabStructure, app.SubTabListings} {
		if t == s.SubTab {
			fmt.Fprintf(b, "<%s> ", t)
		} else {
			fmt.Fprintf(b, " %s  ", t)
		}
	}
	b.WriteString("\n")
	if s.Product == nil {
		b.WriteString("no active product\n")
		return
	}
	fmt.Fprintf(b, "%s %s\n", s.Product.SKUAlias, s.Product.DisplayName)

	switch s.SubTab {
	case app.SubTabContext:
		renderContext(b, s)
	case app.SubTabStructure:
		for i, e := range app.StructureEntries(s.Product.StructureJSON) {
			v := "-"
			if e.Value != nil {
				v = fmt.Sprint(e.Value)
			}
			fmt.Fprintf(b, "%s %-44s %s\n", cursor(i == s.StructureSelected), e.Path, v)
		}
	case app.SubTabListings:
		keys := s.ListingKeys()
		key := keys[min(s.ListingSelected, len(keys)-1)]
		for _, k := range keys {
			if k == key {
				fmt.Fprintf(b, "[%s] ", k)
			} else {
				fmt.Fprintf(b, " %s  ", k)
			}
		}
		b.WriteString("\n")
		l := s.ListingFor(key)
		for i, f := range app.ListingFields() {
			fmt.Fprintf(b, "%s %-22s %s\n", cursor(i == s.ListingFieldSelected), f.Label, f.Value(&l))
		}
	}
}

func renderContext(b *strings.Builder, s *app.State) {
	if s.Session != nil && len(s.Session.Frames) > 0 {
		for i, f := range s.Session.Frames {
			mark := " "
			if s.Session.Picks.IsSelected(f.RelPath) {
				mark = "*"
			}
			score := ""
			if f.SharpnessScore != nil {
				score = fmt.Sprintf(" %.1f", *f.SharpnessScore)
			}
			fmt.Fprintf(b, "%s%s %s%s\n", cursor(i == s.FrameSelected), mark, f.RelPath, score)
		}
	} else {
		for i, img := range s.Product.Images {
			fmt.Fprintf(b, "%s %s\n", cursor(i == s.FrameSelected), img.RelPath)
		}
	}
	if s.Focus == app.FocusText {
		fmt.Fprintf(b, "context> %s\n", s.Product.ContextText)
	}
}

func renderActivity(b *strings.Builder, entries []domain.ActivityEntry, n int) {
	start := max(len(entries)-n, 0)
	for _, e := range entries[start:] {
		fmt.Fprintf(b, "%s %s %s\n", e.At.Format("15:04:05"), severityTag(e.Severity), e.Message)
	}
}

func editBuffer(m app.Modal) (string, bool) {
	switch e := m.(type) {
	case *app.TextEdit:
		return e.Buffer, true
	case *app.StructureEdit:
		return e.Buffer, true
	case *app.StructureFieldEdit:
		return e.Buffer, true
	case *app.ListingEdit:
		return e.Buffer, true
	case *app.ListingFieldEdit:
		return e.Buffer, true
	case *app.SettingsEdit:
		return e.Buffer, true
	}
	return "", false
}

func cursor(on bool) string {
	if on {
		return ">"
	}
	return " "
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func severityTag(sev domain.Severity) string {
	switch sev {
	case domain.SeveritySuccess:
		return "[ok]"
	case domain.SeverityWarning:
		return "[warn]"
	case domain.SeverityError:
		return "[error]"
	}
	return "[info]"
}

const helpText = `keys
  h/l           switch tab (left/right outside Products)
  q             quit
  ?             toggle help
grid
  arrows        move   enter  open session   n  new product
  d             delete   /  find product
workspace
  tab/backtab   sub-tab   g  back to grid
context
  up/down       select   enter/space  toggle pick   s  stream on/off
  c             capture   b  burst   d/D  next/previous device
  backspace     delete image   x  commit   esc  abandon session
  right         edit context text
structure
  enter/e       edit field   E  edit document   r  generate
listings
  left/right    marketplace   enter/e  edit field   E  edit listing
  r             sync   p  push   u  upload images
`
