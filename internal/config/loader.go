package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/va-core/va/internal/logging"
	"github.com/va-core/va/internal/vaerrors"
)

// Load reads one or more INI-style files, in order, merging them into
// a single Settings tree on top of Default(). Later files override
// earlier ones key-by-key; each bare line of a `[files]` section queues
// a further file to merge, and each bare line of the `[Paths]` section
// extends the search list used to resolve included files. `$(Name)`
// macros are taken from the `[Macros]` section, not from search paths.
func Load(primaryPath string) (Settings, error) {
	settings := Default()
	searchPaths := []string{filepath.Dir(primaryPath)}

	seen := make(map[string]bool)
	queue := []string{primaryPath}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		resolved, err := resolveFile(path, searchPaths)
		if err != nil {
			return settings, vaerrors.New(err).
				Component("config").
				Kind(vaerrors.KindFileNotFound).
				Context("search_paths", searchPaths).
				Build()
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true

		sections, err := parseINI(resolved)
		if err != nil {
			return settings, vaerrors.New(err).
				Component("config").
				Kind(vaerrors.KindInvalidParameter).
				Context("file", resolved).
				Build()
		}

		if err := mergeSections(&settings, sections); err != nil {
			return settings, err
		}

		if more, ok := sections["Paths"]; ok {
			for _, p := range orderedValues(more, "") {
				searchPaths = append(searchPaths, p)
			}
		}
		if filesSec, ok := sections["files"]; ok {
			for _, f := range orderedValues(filesSec, "") {
				queue = append(queue, f)
			}
		}
	}

	return settings, nil
}

// section holds an INI section's raw key/value pairs plus any
// positional (key-less) list entries recorded under "".
type section struct {
	values map[string][]string
}

func newSection() *section { return &section{values: make(map[string][]string)} }

func orderedValues(s *section, key string) []string {
	return s.values[key]
}

// parseINI is a small hand-rolled reader for VA's `[Section:id]` /
// `Key=Value` format — the spec's INI dialect is simple enough that
// pulling in viper's remote-config machinery (as the teacher does for
// its own YAML settings) would be pure overhead here.
func parseINI(path string) (map[string]*section, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sections := make(map[string]*section)
	current := newSection()
	sections[""] = current
	seenKeys := make(map[string]map[string]bool)
	seenKeys[""] = make(map[string]bool)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			current = newSection()
			sections[name] = current
			seenKeys[name] = make(map[string]bool)
			continue
		}

		key, value, hasEq := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !hasEq {
			// positional entry (e.g. a bare path line in [Paths])
			current.values[""] = append(current.values[""], line)
			continue
		}
		value = strings.TrimSpace(value)

		sectionName := currentSectionName(sections, current)
		if seenKeys[sectionName][key] {
			return nil, vaerrors.Newf("duplicate key %q in section %q", key, sectionName).
				Component("config").Kind(vaerrors.KindInvalidParameter).Build()
		}
		seenKeys[sectionName][key] = true

		current.values[key] = append(current.values[key], value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return sections, nil
}

func currentSectionName(sections map[string]*section, current *section) string {
	for name, s := range sections {
		if s == current {
			return name
		}
	}
	return ""
}

func resolveFile(path string, searchPaths []string) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	for _, dir := range append([]string{""}, searchPaths...) {
		candidate := filepath.Join(dir, path)
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Abs(candidate)
		}
	}
	return "", os.ErrNotExist
}

func mergeSections(s *Settings, sections map[string]*section) error {
	logger := logging.ForComponent("config")

	macros := map[string]string{}
	if m, ok := sections["Macros"]; ok {
		for k, v := range m.values {
			if k == "" || len(v) == 0 {
				continue
			}
			macros[k] = v[len(v)-1]
		}
	}
	for k, v := range macros {
		s.Macros[k] = v
	}
	substitute := func(v string) string { return expandMacros(v, s.Macros) }

	if d, ok := sections["Debug"]; ok {
		if v, ok := last(d, "LogLevel"); ok {
			s.Debug.LogLevel, _ = strconv.Atoi(v)
		}
		if v, ok := last(d, "TriggerUpdateMilliseconds"); ok {
			s.Debug.TriggerUpdateMilliseconds, _ = strconv.Atoi(v)
		}
	}

	if a, ok := sections["Audio driver"]; ok {
		if v, ok := last(a, "Driver"); ok {
			s.AudioDriver.Driver = v
		}
		if v, ok := last(a, "Device"); ok {
			s.AudioDriver.Device = substitute(v)
		}
		if v, ok := last(a, "SampleRate"); ok {
			s.AudioDriver.SampleRate, _ = strconv.Atoi(v)
		}
		if v, ok := last(a, "BufferSize"); ok {
			s.AudioDriver.BufferSize, _ = strconv.Atoi(v)
		}
		if v, ok := last(a, "InputChannels"); ok {
			s.AudioDriver.InputChannels, _ = strconv.Atoi(v)
		}
		if v, ok := last(a, "OutputChannels"); ok {
			s.AudioDriver.OutputChannels, _ = strconv.Atoi(v)
		}
		if v, ok := last(a, "RecordInputEnabled"); ok {
			s.AudioDriver.RecordInput.Enabled = v == "true"
		}
		if v, ok := last(a, "RecordInputFileName"); ok {
			s.AudioDriver.RecordInput.FileName = substitute(v)
		}
		if v, ok := last(a, "RecordInputBaseFolder"); ok {
			s.AudioDriver.RecordInput.BaseFolder = substitute(v)
		}
		if v, ok := last(a, "RecordOutputEnabled"); ok {
			s.AudioDriver.RecordOutput.Enabled = v == "true"
		}
		if v, ok := last(a, "RecordOutputFileName"); ok {
			s.AudioDriver.RecordOutput.FileName = substitute(v)
		}
		if v, ok := last(a, "RecordOutputBaseFolder"); ok {
			s.AudioDriver.RecordOutput.BaseFolder = substitute(v)
		}
	}

	if p, ok := sections["Paths"]; ok {
		for _, v := range orderedValues(p, "") {
			s.Paths = append(s.Paths, substitute(v))
		}
	}

	if hm, ok := sections["HomogeneousMedium"]; ok {
		if v, ok := last(hm, "Temperature"); ok {
			s.HomogeneousMedium.TemperatureCelsius, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := last(hm, "Pressure"); ok {
			s.HomogeneousMedium.PressurePascal, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := last(hm, "Humidity"); ok {
			s.HomogeneousMedium.RelativeHumidity, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := last(hm, "SoundSpeed"); ok {
			s.HomogeneousMedium.SoundSpeed, _ = strconv.ParseFloat(v, 64)
		}
	}

	if c, ok := sections["Calibration"]; ok {
		if v, ok := last(c, "DefaultAmplitudeCalibrationMode"); ok {
			s.Calibration.DefaultAmplitudeCalibrationMode = AmplitudeCalibrationMode(v)
		}
		if v, ok := last(c, "DefaultDistance"); ok {
			s.Calibration.DefaultDistance, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := last(c, "DefaultMinimumDistance"); ok {
			s.Calibration.DefaultMinimumDistance, _ = strconv.ParseFloat(v, 64)
		}
	}

	for name, sec := range sections {
		id, ok := sectionID(name, "OutputDevice:")
		if ok {
			dev := OutputDeviceConfig{}
			if v, ok := last(sec, "Type"); ok {
				dev.Type = v
			}
			if v, ok := last(sec, "Channels"); ok {
				dev.Channels = parseIntList(v)
			}
			if v, ok := last(sec, "Position"); ok {
				dev.Position = parseVec3(v)
			}
			if v, ok := last(sec, "View"); ok {
				dev.View = parseVec3(v)
			}
			if v, ok := last(sec, "Up"); ok {
				dev.Up = parseVec3(v)
			}
			if v, ok := last(sec, "DataFileName"); ok {
				dev.DataFile = substitute(v)
			}
			s.OutputDevices[id] = dev
		}

		if id, ok := sectionID(name, "Output:"); ok {
			out := OutputConfig{Enabled: true}
			if v, ok := last(sec, "Devices"); ok {
				out.Devices = parseStringList(v)
			}
			if v, ok := last(sec, "Description"); ok {
				out.Description = v
			}
			if v, ok := last(sec, "Enabled"); ok {
				out.Enabled = v != "false"
			}
			s.Outputs[id] = out
		}

		if id, ok := sectionID(name, "Input:"); ok {
			in := InputConfig{}
			if v, ok := last(sec, "Devices"); ok {
				in.Devices = parseStringList(v)
			}
			if v, ok := last(sec, "Active"); ok {
				in.Active = v == "true"
			}
			s.Inputs[id] = in
		}

		if id, ok := sectionID(name, "Renderer:"); ok {
			r := RendererConfig{Enabled: true, ExtraConfig: map[string]any{}}
			if v, ok := last(sec, "Class"); ok {
				r.Class = v
			}
			if v, ok := last(sec, "Enabled"); ok {
				r.Enabled = v != "false"
			}
			if v, ok := last(sec, "Reproductions"); ok {
				r.Reproductions = parseStringList(v)
			}
			for k, vs := range sec.values {
				if k == "" || k == "Class" || k == "Enabled" || k == "Reproductions" {
					continue
				}
				r.ExtraConfig[k] = vs[len(vs)-1]
			}
			s.Renderers[id] = r
		}

		if id, ok := sectionID(name, "Reproduction:"); ok {
			r := ReproductionConfig{Enabled: true, ExtraConfig: map[string]any{}}
			if v, ok := last(sec, "Class"); ok {
				r.Class = v
			}
			if v, ok := last(sec, "Enabled"); ok {
				r.Enabled = v != "false"
			}
			if v, ok := last(sec, "Outputs"); ok {
				r.Outputs = parseStringList(v)
			}
			for k, vs := range sec.values {
				if k == "" || k == "Class" || k == "Enabled" || k == "Outputs" {
					continue
				}
				r.ExtraConfig[k] = vs[len(vs)-1]
			}
			s.Reproductions[id] = r
		}
	}

	logger.Debug("merged config section",
		"renderers", len(s.Renderers),
		"reproductions", len(s.Reproductions),
		"outputs", len(s.Outputs))

	return nil
}

func sectionID(name, prefix string) (string, bool) {
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	return strings.TrimPrefix(name, prefix), true
}

func last(s *section, key string) (string, bool) {
	v, ok := s.values[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[len(v)-1], true
}

func parseIntList(v string) []int {
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func parseStringList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseVec3(v string) [3]float64 {
	var out [3]float64
	parts := strings.Split(v, ",")
	for i := 0; i < 3 && i < len(parts); i++ {
		out[i], _ = strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
	}
	return out
}

// expandMacros replaces every $(Name) occurrence in v with the
// corresponding macro value, leaving unknown macros untouched.
func expandMacros(v string, macros map[string]string) string {
	for name, value := range macros {
		v = strings.ReplaceAll(v, "$("+name+")", value)
	}
	return v
}
