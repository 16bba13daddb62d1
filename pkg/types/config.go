// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DefaultEPSG is the fallback source datum when neither CONFIG.toml nor the
// deed file declares one: Indian 1975 / UTM zone 47N.
const DefaultEPSG = 24047

// MetaConfig holds deed-office metadata stamped into every extracted file.
type MetaConfig struct {
	// DOLOffice is the Department of Lands office name.
	DOLOffice string `mapstructure:"dol_office" toml:"dol_office" yaml:"dol_office"`

	// TOWGS84 is the 3-parameter Helmert shift (dx, dy, dz in meters) from
	// the local datum to WGS84, as published for the office's survey area.
	TOWGS84 []float64 `mapstructure:"towgs84" toml:"towgs84" yaml:"towgs84"`
}

// DeedConfig holds the default deed attributes for a scanning session.
type DeedConfig struct {
	// SurveyType is the survey method recorded on deeds in this batch.
	SurveyType string `mapstructure:"survey_type" toml:"survey_type" yaml:"survey_type"`

	// EPSG is the default source datum code for deeds that do not declare
	// their own (default 24047).
	EPSG int `mapstructure:"epsg" toml:"epsg" yaml:"epsg"`
}

// ExtractConfig holds settings for the OCR extraction stage.
type ExtractConfig struct {
	// Language is the Tesseract trained-data language hint (default "eng").
	Language string `mapstructure:"language" toml:"language" yaml:"language"`

	// Engine selects the OCR backend: "tesseract" (in-process, default) or
	// "tesseract-exec" (shell out to the tesseract binary).
	Engine string `mapstructure:"engine" toml:"engine" yaml:"engine"`
}

// ServeConfig holds settings for the interactive editor server.
type ServeConfig struct {
	// Host is the address to bind (default 127.0.0.1; the editor is a
	// local desktop surface, not a network service).
	Host string `mapstructure:"host" toml:"host" yaml:"host"`

	// Port is the listen port (default 8754).
	Port int `mapstructure:"port" toml:"port" yaml:"port"`
}

// ExportConfig holds settings for the GPKG export stage.
type ExportConfig struct {
	// Prefix names the output containers: <prefix>_W84.gpkg and
	// <prefix>_SRC.gpkg (default "cadastre").
	Prefix string `mapstructure:"prefix" toml:"prefix" yaml:"prefix"`

	// WriteSourceCRS controls whether the source-datum container is
	// written alongside the WGS84 one (default true).
	WriteSourceCRS bool `mapstructure:"write_source_crs" toml:"write_source_crs" yaml:"write_source_crs"`
}

// Config groups all stage configurations, mirroring CONFIG.toml.
type Config struct {
	Meta    MetaConfig    `mapstructure:"meta" toml:"meta" yaml:"meta"`
	Deed    DeedConfig    `mapstructure:"deed" toml:"deed" yaml:"deed"`
	Extract ExtractConfig `mapstructure:"extract" toml:"extract" yaml:"extract"`
	Serve   ServeConfig   `mapstructure:"serve" toml:"serve" yaml:"serve"`
	Export  ExportConfig  `mapstructure:"export" toml:"export" yaml:"export"`
}

// ApplyDefaults fills zero-valued fields with working defaults so a missing
// CONFIG.toml still yields a usable pipeline.
func (c *Config) ApplyDefaults() {
	if c.Deed.EPSG == 0 {
		c.Deed.EPSG = DefaultEPSG
	}
	if c.Extract.Language == "" {
		c.Extract.Language = "eng"
	}
	if c.Extract.Engine == "" {
		c.Extract.Engine = "tesseract"
	}
	if c.Serve.Host == "" {
		c.Serve.Host = "127.0.0.1"
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = 8754
	}
	if c.Export.Prefix == "" {
		c.Export.Prefix = "cadastre"
	}
}
