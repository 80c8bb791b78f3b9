package ime

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"textservice/internal/config"
	"textservice/internal/service"
)

// Component is the IBus component description that tells ibus-daemon how
// to start the engine.
type Component struct {
	XMLName     xml.Name          `xml:"component"`
	Name        string            `xml:"name"`
	Description string            `xml:"description"`
	Exec        string            `xml:"exec"`
	Version     string            `xml:"version"`
	License     string            `xml:"license"`
	TextDomain  string            `xml:"textdomain"`
	Engines     []ComponentEngine `xml:"engines>engine"`
}

// ComponentEngine describes one engine of a component.
type ComponentEngine struct {
	Name        string `xml:"name"`
	Language    string `xml:"language"`
	License     string `xml:"license"`
	Layout      string `xml:"layout"`
	LongName    string `xml:"longname"`
	Description string `xml:"description"`
	Rank        int    `xml:"rank"`
	Symbol      string `xml:"symbol"`
}

// NewComponent describes the engine binary at execPath.
func NewComponent(cfg config.IBusConfig, execPath string) Component {
	return Component{
		Name:        cfg.BusName,
		Description: service.Description,
		Exec:        execPath + " --ibus",
		Version:     "1.0",
		License:     "MIT",
		TextDomain:  cfg.EngineName,
		Engines: []ComponentEngine{{
			Name:        cfg.EngineName,
			Language:    "en",
			License:     "MIT",
			Layout:      "us",
			LongName:    service.Description,
			Description: service.Description,
			Rank:        0,
			Symbol:      "T",
		}},
	}
}

// Marshal renders the component file.
func (c Component) Marshal() ([]byte, error) {
	out, err := xml.MarshalIndent(c, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal component: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// InstallComponent writes the component file into cfg.ComponentDir and
// returns its path.
func InstallComponent(cfg config.IBusConfig, execPath string) (string, error) {
	data, err := NewComponent(cfg, execPath).Marshal()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.ComponentDir, 0755); err != nil {
		return "", fmt.Errorf("create component directory: %w", err)
	}
	path := filepath.Join(cfg.ComponentDir, cfg.EngineName+".xml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write component: %w", err)
	}
	return path, nil
}

// UninstallComponent removes the component file if present.
func UninstallComponent(cfg config.IBusConfig) error {
	path := filepath.Join(cfg.ComponentDir, cfg.EngineName+".xml")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove component: %w", err)
	}
	return nil
}
