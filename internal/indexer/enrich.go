package indexer

import (
	"bytes"
	"encoding/json"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/syrinxlabs/syrinx/internal/audioinfo"
	"github.com/syrinxlabs/syrinx/internal/errors"
)

// Recording-session naming conventions. Directory layouts look like
// "bells_day7/8L16D_photoperiod/bird 12/July_14_09_21/62/..." and
// filenames like "bells_0042_on_July_14_09_21_03.wav". A name that does
// not follow the conventions contributes nothing; enrichment never fails
// a run on its own.
var (
	regimeRe    = regexp.MustCompile(`(?i)\b(bells|simple|samba|isolates)\b`)
	tutorDayRe  = regexp.MustCompile(`(?i)day[ _-]*(\d+)`)
	birdDirRe   = regexp.MustCompile(`^[A-Za-z]+\s*\d+$`)
	digitsRe    = regexp.MustCompile(`\d+`)
	sessionRe   = regexp.MustCompile(`^(?:\d+)?([A-Za-z]{3,9})_(\d{2})_(\d{2})_(\d{2})$`)
	recordingRe = regexp.MustCompile(`^(.+?)_on_([A-Za-z]{3,9})_(\d{2})_(\d{2})_(\d{2})(?:_(\d{2}))?$`)
)

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// monthNumber maps a month name or its three-letter prefix to 1..12.
func monthNumber(name string) (int, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if len(key) > 3 {
		key = key[:3]
	}
	n, ok := monthNumbers[key]
	return n, ok
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseDirMeta extracts session conventions from the directory part of a
// root-relative recording path: rearing regime and tutor day from the top
// directory, then photoperiod, bird identifier, session label, and days
// post hatch from the components below it.
func parseDirMeta(relDir string) map[string]any {
	meta := map[string]any{}
	if relDir == "" || relDir == "." {
		return meta
	}
	parts := strings.Split(relDir, "/")

	topDir := parts[0]
	meta["top_dir"] = topDir
	if m := regimeRe.FindStringSubmatch(topDir); m != nil {
		meta["regime"] = strings.ToLower(m[1])
	}
	if m := tutorDayRe.FindStringSubmatch(topDir); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			meta["tutor_start_day"] = n
		}
	}

	photoperiod := ""
	birdIdx := -1
	for idx := 1; idx < len(parts); idx++ {
		part := parts[idx]
		if photoperiod == "" && strings.Contains(strings.ToLower(part), "photoperiod") {
			photoperiod = part
			meta["photoperiod"] = part
			continue
		}
		if birdDirRe.MatchString(part) {
			birdIdx = idx
			break
		}
	}
	if birdIdx < 0 {
		return meta
	}

	birdRaw := parts[birdIdx]
	meta["bird_id"] = strings.ToUpper(strings.ReplaceAll(birdRaw, " ", ""))
	if digits := digitsRe.FindString(birdRaw); digits != "" {
		if n, err := strconv.Atoi(digits); err == nil {
			meta["bird_num"] = n
		}
	}

	var preBird []string
	for _, part := range parts[1:birdIdx] {
		if photoperiod != "" && part == photoperiod {
			continue
		}
		preBird = append(preBird, part)
	}
	if len(preBird) > 0 {
		meta["pre_bird_path"] = strings.Join(preBird, "/")
	}

	var sessionParts []string
	for _, part := range parts[birdIdx+1:] {
		if allDigits(part) {
			if n, err := strconv.Atoi(part); err == nil {
				meta["dph"] = n
			}
			break
		}
		sessionParts = append(sessionParts, part)
	}
	if len(sessionParts) > 0 {
		meta["session"] = strings.Join(sessionParts, "/")
		if m := sessionRe.FindStringSubmatch(sessionParts[len(sessionParts)-1]); m != nil {
			if mon, ok := monthNumber(m[1]); ok {
				meta["session_month"] = mon
			}
			meta["session_day"] = atoiOrZero(m[2])
			meta["session_hour"] = atoiOrZero(m[3])
			meta["session_minute"] = atoiOrZero(m[4])
		}
	}
	return meta
}

// parseFileMeta extracts the capture timestamp and take index from a
// recording filename of the "<prefix>_<index>_on_<Month>_<dd>_<hh>_<mm>[_<ss>]"
// form.
func parseFileMeta(name string) map[string]any {
	meta := map[string]any{}

	stem := strings.TrimSuffix(name, path.Ext(name))
	if !strings.Contains(stem, "_on_") {
		return meta
	}
	m := recordingRe.FindStringSubmatch(stem)
	if m == nil {
		return meta
	}

	tokens := strings.Split(m[1], "_")
	for i := len(tokens) - 1; i >= 0; i-- {
		if allDigits(tokens[i]) {
			if n, err := strconv.Atoi(tokens[i]); err == nil {
				meta["file_index"] = n
			}
			break
		}
	}
	if mon, ok := monthNumber(m[2]); ok {
		meta["recording_month"] = mon
	}
	meta["recording_day"] = atoiOrZero(m[3])
	meta["recording_hour"] = atoiOrZero(m[4])
	meta["recording_minute"] = atoiOrZero(m[5])
	if m[6] != "" {
		meta["recording_second"] = atoiOrZero(m[6])
	}
	return meta
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// sidecarPath returns the optional metadata sidecar location for an audio
// file.
func sidecarPath(audioAbs string) string {
	return audioAbs + ".meta.json"
}

// readSidecar parses an optional sidecar next to audioAbs. A missing
// sidecar is normal. A malformed one is fatal: it means the recording
// pipeline wrote garbage, and cataloging past it would hide the breakage.
// Well-known keys are lifted into session metadata; the whole object is
// preserved verbatim.
func readSidecar(audioAbs string) (lifted map[string]any, raw json.RawMessage, err error) {
	scPath := sidecarPath(audioAbs)
	data, err := os.ReadFile(scPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, errors.New(err).
			Component("indexer").
			Category(errors.CategoryFileIO).
			Context("operation", "sidecar_read").
			Context("path", scPath).
			Build()
	}

	obj, err := jason.NewObjectFromBytes(data)
	if err != nil {
		return nil, nil, errors.Newf("malformed metadata sidecar %s: %v", scPath, err).
			Component("indexer").
			Category(errors.CategoryValidation).
			Context("path", scPath).
			Build()
	}

	lifted = map[string]any{}
	if v, err := obj.GetString("regime"); err == nil {
		lifted["regime"] = v
	}
	if v, err := obj.GetString("bird"); err == nil {
		lifted["bird"] = v
	}
	if v, err := obj.GetString("notes"); err == nil {
		lifted["notes"] = v
	}
	if v, err := obj.GetInt64("sample_rate"); err == nil {
		lifted["sample_rate"] = int(v)
	}

	return lifted, json.RawMessage(bytes.TrimSpace(data)), nil
}

// buildRecordingExtra assembles the free-form metadata column for one
// discovered recording: audio header fields, naming-convention session
// metadata, and the optional sidecar.
func buildRecordingExtra(rel string, info audioinfo.AudioInfo, sidecarLifted map[string]any, sidecarRaw json.RawMessage) (string, error) {
	session := parseDirMeta(path.Dir(rel))
	for k, v := range parseFileMeta(path.Base(rel)) {
		session[k] = v
	}
	// Sidecar metadata is explicit, so it wins over filename guesses.
	for k, v := range sidecarLifted {
		session[k] = v
	}

	extra := map[string]any{
		"audio": map[string]any{
			"sample_rate":   info.SampleRate,
			"total_samples": info.TotalSamples,
			"num_channels":  info.NumChannels,
			"bit_depth":     info.BitDepth,
			"duration_sec":  info.DurationSeconds(),
		},
	}
	if len(session) > 0 {
		extra["session"] = session
	}
	if len(sidecarRaw) > 0 {
		extra["sidecar"] = sidecarRaw
	}

	encoded, err := json.Marshal(extra)
	if err != nil {
		return "", errors.New(err).
			Component("indexer").
			Category(errors.CategoryValidation).
			Context("operation", "encode_extra").
			Context("path", rel).
			Build()
	}
	return string(encoded), nil
}
