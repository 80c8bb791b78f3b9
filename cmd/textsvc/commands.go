package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"textservice/internal/attribute"
	"textservice/internal/config"
	"textservice/internal/ime"
	"textservice/internal/script"
	"textservice/internal/store"
)

func cmdReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	verbose := fs.Bool("v", false, "print the document after each script")
	withStyles := fs.Bool("styles", false, "resolve styles through the configured store")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return errors.New("usage: textsvc replay [-v] <script>...")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	toggle, err := cfg.Keys.ToggleKey()
	if err != nil {
		return err
	}
	opts := script.Options{Logger: logger.Logger, ToggleKey: toggle}
	if *withStyles {
		backend, err := store.OpenBackend(cfg.Styles.Backend, cfg.Styles.Path)
		if err != nil {
			return err
		}
		defer backend.Close()
		opts.Styles = backend
	}

	failed := 0
	for _, path := range fs.Args() {
		s, err := script.Load(path)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		res, err := script.Run(s, opts)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed++
		} else {
			fmt.Printf("ok   %s (%d steps)\n", path, len(res.Steps))
		}
		if *verbose && res != nil {
			fmt.Printf("     text=%q selection=%v composing=%v open=%v\n",
				res.Text, res.Selection, res.Composing, res.Open)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, fs.NArg())
	}
	return nil
}

func openStyles() (*attribute.Provider, store.Backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return nil, nil, err
	}
	backend, err := store.OpenBackend(cfg.Styles.Backend, cfg.Styles.Path)
	if err != nil {
		return nil, nil, err
	}
	return attribute.NewProvider(backend, logger.Logger), backend, nil
}

func cmdStyles(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: textsvc styles list|set|reset|db")
	}
	switch args[0] {
	case "list":
		return stylesList()
	case "set":
		return stylesSet(args[1:])
	case "reset":
		if len(args) < 2 {
			return errors.New("usage: textsvc styles reset <name>")
		}
		return stylesReset(args[1])
	case "db":
		return stylesDB(args[1:])
	default:
		return fmt.Errorf("unknown styles command: %s", args[0])
	}
}

func stylesList() error {
	p, backend, err := openStyles()
	if err != nil {
		return err
	}
	defer backend.Close()

	overrides := map[string]bool{}
	entries, err := backend.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		overrides[e.Name] = true
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSOURCE\tTEXT\tBACKGROUND\tLINE\tATTR\tDESCRIPTION")
	for _, info := range p.Enum().Next(len(attribute.Identities)) {
		rec := info.Value()
		source := "default"
		if overrides[info.Identity().Name()] {
			source = "override"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			info.Identity(), source, formatColor(rec.Text), formatColor(rec.Background),
			formatLine(rec.Line, rec.BoldLine), formatAttr(rec.Attr), info.Description())
	}
	return w.Flush()
}

func stylesSet(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: textsvc styles set <name> [flags]")
	}
	id, ok := attribute.ByName(args[0])
	if !ok {
		return fmt.Errorf("unknown style %q", args[0])
	}

	fs := flag.NewFlagSet("styles set", flag.ExitOnError)
	text := fs.String("text", "", "text color as RRGGBB, or none")
	bg := fs.String("bg", "", "background color as RRGGBB, or none")
	line := fs.String("line", "", "underline: none, solid, dot, dash or squiggle")
	lineColor := fs.String("line-color", "", "underline color as RRGGBB, or none")
	bold := fs.Bool("bold", false, "draw a bold underline")
	_ = fs.Parse(args[1:])

	p, backend, err := openStyles()
	if err != nil {
		return err
	}
	defer backend.Close()

	info, err := p.Info(id.GUID())
	if err != nil {
		return err
	}
	rec := info.Value()

	for _, c := range []struct {
		flag string
		dst  *attribute.Color
	}{{*text, &rec.Text}, {*bg, &rec.Background}, {*lineColor, &rec.LineColor}} {
		if c.flag == "" {
			continue
		}
		if *c.dst, err = parseColor(c.flag); err != nil {
			return err
		}
	}
	if *line != "" {
		if rec.Line, err = parseLine(*line); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "bold" {
			rec.BoldLine = *bold
		}
	})

	if err := info.SetValue(rec); err != nil {
		return err
	}
	fmt.Printf("Updated %s\n", id)
	return nil
}

func stylesReset(name string) error {
	id, ok := attribute.ByName(name)
	if !ok {
		return fmt.Errorf("unknown style %q", name)
	}
	p, backend, err := openStyles()
	if err != nil {
		return err
	}
	defer backend.Close()

	info, err := p.Info(id.GUID())
	if err != nil {
		return err
	}
	if err := info.Reset(); err != nil {
		return err
	}
	fmt.Printf("Reset %s\n", id)
	return nil
}

func stylesDB(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: textsvc styles db status|rollback")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Styles.Backend != "" && cfg.Styles.Backend != store.KindSQLite {
		return fmt.Errorf("styles db needs the %s backend, configured: %s", store.KindSQLite, cfg.Styles.Backend)
	}
	s, err := store.Open(cfg.Styles.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	switch args[0] {
	case "status":
		status, err := s.MigrationStatus()
		if err != nil {
			return err
		}
		printMigrationStatus(os.Stdout, cfg.Styles.Path, status)
		return nil
	case "rollback":
		if err := s.RollbackMigration(); err != nil {
			return err
		}
		status, err := s.MigrationStatus()
		if err != nil {
			return err
		}
		fmt.Printf("Rolled back to schema version %d. It is migrated again on next use.\n", status.CurrentVersion)
		return nil
	default:
		return fmt.Errorf("unknown styles db command: %s", args[0])
	}
}

func printMigrationStatus(w io.Writer, path string, status *store.MigrationStatus) {
	fmt.Fprintf(w, "Database: %s\n", path)
	fmt.Fprintf(w, "Schema version: %d of %d\n", status.CurrentVersion, status.LatestVersion)
	for _, m := range status.Pending {
		fmt.Fprintf(w, "  pending %d: %s\n", m.Version, m.Description)
	}
}

func cmdIBus(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: textsvc ibus install|uninstall")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	switch args[0] {
	case "install":
		fs := flag.NewFlagSet("ibus install", flag.ExitOnError)
		execPath := fs.String("exec", defaultEnginePath(), "path of the textsvc-ibus binary")
		_ = fs.Parse(args[1:])
		path, err := ime.InstallComponent(cfg.IBus, *execPath)
		if err != nil {
			return err
		}
		fmt.Printf("Installed %s. Run 'ibus restart' to load it.\n", path)
		return nil
	case "uninstall":
		if err := ime.UninstallComponent(cfg.IBus); err != nil {
			return err
		}
		fmt.Println("Uninstalled.")
		return nil
	default:
		return fmt.Errorf("unknown ibus command: %s", args[0])
	}
}

func defaultEnginePath() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "textsvc-ibus")
	}
	return "/usr/local/bin/textsvc-ibus"
}

// validationHints suggests fixes for the fields that failed validation.
func validationHints(errs config.ValidationErrors) []string {
	var hints []string
	if errs.HasField("styles.backend") || errs.HasField("styles.path") {
		hints = append(hints, "styles: set backend = \"sqlite\" with a database path, or backend = \"registry\" on Windows")
	}
	if errs.HasField("keys.toggle_vkey") || errs.HasField("keys.toggle_modifiers") {
		hints = append(hints, "keys: toggle_vkey is a virtual key code such as 0xC0, toggle_modifiers a list such as [\"alt\"]")
	}
	if errs.HasField("logging.level") {
		hints = append(hints, "logging: level is one of debug, info, warn, error")
	}
	return hints
}

// parseColor reads RRGGBB (with an optional leading #) or "none".
func parseColor(s string) (attribute.Color, error) {
	if strings.EqualFold(s, "none") {
		return attribute.Color{}, nil
	}
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return attribute.Color{}, fmt.Errorf("invalid color %q: want RRGGBB", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return attribute.Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return attribute.RGB(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

func formatColor(c attribute.Color) string {
	switch c.Type {
	case attribute.ColorNone:
		return "-"
	case attribute.ColorRGB:
		return fmt.Sprintf("#%02X%02X%02X", c.Value&0xff, c.Value>>8&0xff, c.Value>>16&0xff)
	default:
		return fmt.Sprintf("system(%d)", c.Value)
	}
}

var lineStyles = map[string]attribute.LineStyle{
	"none":     attribute.LineNone,
	"solid":    attribute.LineSolid,
	"dot":      attribute.LineDot,
	"dash":     attribute.LineDash,
	"squiggle": attribute.LineSquiggle,
}

func parseLine(s string) (attribute.LineStyle, error) {
	if ls, ok := lineStyles[strings.ToLower(s)]; ok {
		return ls, nil
	}
	return 0, fmt.Errorf("invalid line style %q", s)
}

func formatLine(ls attribute.LineStyle, bold bool) string {
	name := "unknown"
	for k, v := range lineStyles {
		if v == ls {
			name = k
		}
	}
	if bold && ls != attribute.LineNone {
		name += "+bold"
	}
	return name
}

func formatAttr(a attribute.Attr) string {
	switch a {
	case attribute.AttrInput:
		return "input"
	case attribute.AttrTargetConverted:
		return "target-converted"
	case attribute.AttrConverted:
		return "converted"
	case attribute.AttrTargetNotConverted:
		return "target-not-converted"
	case attribute.AttrInputError:
		return "input-error"
	case attribute.AttrFixedConverted:
		return "fixed-converted"
	default:
		return "other"
	}
}
