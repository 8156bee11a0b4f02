package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haivivi/storyspark/pkg/genx"
)

const testParagraph = "The lamp flickered twice, then the sea answered."

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// fakeGenerate answers narrative, chat, suggestion, and speech requests
// with fixed content.
func fakeGenerate(_ context.Context, req *genx.Request) (genx.Response, error) {
	switch req.Mode {
	case genx.ModeSchemaJSON:
		return &genx.JSONResponse{Raw: `[
			{"kind": "PLOT", "text": "A ship appears."},
			{"kind": "CHARACTER", "text": "The keeper returns."},
			{"kind": "SETTING", "text": "Fog rolls in."}
		]`}, nil
	case genx.ModeAudio:
		return &genx.AudioResponse{Data: make([]byte, 480), SampleRate: 24000, Channels: 1}, nil
	}
	if req.System != "" {
		return &genx.TextResponse{Text: "Try a storm."}, nil
	}
	return &genx.TextResponse{Text: testParagraph}, nil
}

// setupTestEnv points the config at a temp dir and installs the fake
// service. It returns the config dir.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORYSPARK_CONFIG_DIR", dir)
	t.Setenv("STORYSPARK_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key-123456")
	t.Setenv("STORYSPARK_CACHE", "memory")
	t.Setenv("STORYSPARK_EXPORT_DIR", filepath.Join(dir, "exports"))
	t.Setenv("STORYSPARK_S3_BUCKET", "")
	t.Setenv("STORYSPARK_PLAYER", "")
	t.Setenv("STORYSPARK_METRICS", "")

	testServiceOverride = genx.ServiceFunc(fakeGenerate)
	t.Cleanup(func() { testServiceOverride = nil })
	return dir
}

func resetFlags() {
	cfgFile = ""
	verbose = false
	providerName = ""
	formatOutput = "yaml"
	queryOutput = ""
	outputFile = ""
	globalConfig = nil

	narrateLanguage, narrateTitle, narrateExport = "", "", false
	sparkParagraph, sparkParagraphFile, sparkLanguage = "", "", ""
	chatMessage, chatParagraph, chatParagraphFile = "", "", ""
	speakWAV, speakVoice, speakPlay = "", "", false
	pcmRate, pcmChannels, pcmMIME, pcmBase64, pcmWAV = 24000, 1, "", false, ""
	sessionLanguage, sessionTitle = "", ""
	configInitForce = false
}

func runCmd(t *testing.T, stdin string, args ...string) (stdout string, err error) {
	t.Helper()
	stdout, _, err = runCmdStderr(t, stdin, args...)
	return stdout, err
}

func runCmdStderr(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	resetFlags()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	}()

	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	setupTestEnv(t)

	stdout, err := runCmd(t, "", "version", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, `"version"`) {
		t.Fatalf("expected JSON, got: %s", stdout)
	}

	stdout, err = runCmd(t, "", "version", "-o", "raw")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "storyspark ") {
		t.Fatalf("expected version line, got: %s", stdout)
	}
}

func TestOutputFile(t *testing.T) {
	dir := setupTestEnv(t)
	path := filepath.Join(dir, "version.json")

	stdout, err := runCmd(t, "", "version", "-o", "json", "--output-file", path)
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var info map[string]any
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if info["version"] == "" {
		t.Errorf("missing version: %s", data)
	}
}

func TestNarrate(t *testing.T) {
	dir := setupTestEnv(t)
	img := writeFile(t, "beach.png", pngBytes)

	stdout, err := runCmd(t, "", "narrate", img, "-o", "json", "--title", "Night Tide", "--export")
	if err != nil {
		t.Fatal(err)
	}
	var res storyResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if res.Paragraph != testParagraph {
		t.Errorf("paragraph = %q", res.Paragraph)
	}
	if res.Media == nil || res.Media.MIMEType != "image/png" {
		t.Errorf("media = %+v", res.Media)
	}
	if !strings.HasPrefix(res.Exported, "night-tide_english_") {
		t.Errorf("exported = %q", res.Exported)
	}
	content, err := os.ReadFile(filepath.Join(dir, "exports", res.Exported))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "Night Tide\n\n"+testParagraph {
		t.Errorf("export content = %q", content)
	}

	stdout, err = runCmd(t, "", "exports", "list", "-o", "raw")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != res.Exported {
		t.Errorf("exports list = %q", stdout)
	}
	stdout, err = runCmd(t, "", "exports", "show", res.Exported)
	if err != nil {
		t.Fatal(err)
	}
	if stdout != string(content) {
		t.Errorf("exports show = %q", stdout)
	}
}

func TestNarrateDataURL(t *testing.T) {
	setupTestEnv(t)
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)

	stdout, err := runCmd(t, "", "narrate", url, "-q", ".media.mime_type", "-o", "raw")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "image/png" {
		t.Errorf("media type = %q", stdout)
	}

	if _, err := runCmd(t, "", "narrate", "data:image/png,not-base64"); err == nil {
		t.Error("expected an error for a data URL without base64")
	}
}

func TestNarrateQueryRaw(t *testing.T) {
	setupTestEnv(t)
	img := writeFile(t, "beach.png", pngBytes)

	stdout, err := runCmd(t, "", "narrate", img, "-q", ".paragraph", "-o", "raw")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != testParagraph {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestNarrateRejectsUnsupportedMedia(t *testing.T) {
	setupTestEnv(t)
	txt := writeFile(t, "notes.txt", []byte("plain text"))

	if _, err := runCmd(t, "", "narrate", txt); err == nil {
		t.Fatal("expected an error for non-media input")
	}
}

func TestSpark(t *testing.T) {
	setupTestEnv(t)

	stdout, err := runCmd(t, "", "spark", "-p", "It began.", "-q", "[.suggestions[].kind]", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	var kinds []string
	if err := json.Unmarshal([]byte(stdout), &kinds); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if strings.Join(kinds, ",") != "PLOT,CHARACTER,SETTING" {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestChat(t *testing.T) {
	setupTestEnv(t)

	stdout, err := runCmd(t, "make it darker\n", "chat", "-p", "It began.", "-m", "-", "-q", ".reply", "-o", "raw")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "Try a storm." {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestSpeakWAV(t *testing.T) {
	setupTestEnv(t)
	out := filepath.Join(t.TempDir(), "story.wav")

	stdout, err := runCmd(t, "", "speak", "Once", "upon", "a", "time.", "--wav", out, "-q", ".frames", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != "240" {
		t.Errorf("frames = %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 44+480 || string(data[:4]) != "RIFF" {
		t.Errorf("wav: %d bytes, header %q", len(data), data[:4])
	}

	if _, err := runCmd(t, "", "speak", "hello"); err == nil {
		t.Error("speak without --wav or --play should fail")
	}
}

func TestSpeakPlayToStdout(t *testing.T) {
	setupTestEnv(t)
	t.Setenv("STORYSPARK_PLAYER", "-")

	stdout, stderr, err := runCmdStderr(t, "", "speak", "Once.", "--play", "-q", ".played", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if len(stdout) != 480 || strings.Trim(stdout, "\x00") != "" {
		t.Errorf("stdout: %d bytes, want 480 bytes of silence", len(stdout))
	}
	if !strings.Contains(stderr, "true") {
		t.Errorf("stderr = %q, want the result", stderr)
	}
}

func TestMetricsSummary(t *testing.T) {
	setupTestEnv(t)
	t.Setenv("STORYSPARK_METRICS", "true")

	_, stderr, err := runCmdStderr(t, "", "spark", "-p", "It began.")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"storyspark.generate.requests{mode=schema_json,status=ok} count=1",
		"storyspark.generate.duration{mode=schema_json} count=1",
	} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}

	t.Setenv("STORYSPARK_METRICS", "")
	_, stderr, err = runCmdStderr(t, "", "spark", "-p", "It began.")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(stderr, "storyspark.generate") {
		t.Errorf("summary printed without metrics enabled:\n%s", stderr)
	}
}

func TestPCMDecode(t *testing.T) {
	setupTestEnv(t)
	// Two stereo frames plus one stray byte.
	in := writeFile(t, "speech.pcm", []byte{0, 0x40, 0, 0xc0, 1, 0, 2, 0, 9})
	out := filepath.Join(t.TempDir(), "speech.wav")

	stdout, err := runCmd(t, "", "pcm", "decode", in, "--rate", "16000", "--channels", "2", "--wav", out, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	var res pcmResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if res.Frames != 2 || res.Channels != 2 || res.SampleRate != 16000 || res.Dropped != 1 {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("wav not written: %v", err)
	}
}

func TestPCMDecodeBase64(t *testing.T) {
	setupTestEnv(t)

	stdout, err := runCmd(t, "AABA\nAMA=\n", "pcm", "decode", "-", "--base64",
		"--mime", "audio/L16;codec=pcm;rate=24000", "-q", ".frames", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != "2" {
		t.Errorf("frames = %q", stdout)
	}

	if _, err := runCmd(t, "not*base64", "pcm", "decode", "-", "--base64"); err == nil {
		t.Error("malformed base64 should fail")
	}
	if _, err := runCmd(t, "", "pcm", "decode", "-", "--channels", "0"); err == nil {
		t.Error("zero channels should fail")
	}
}

func TestSession(t *testing.T) {
	setupTestEnv(t)
	img := writeFile(t, "beach.png", pngBytes)

	script := strings.Join([]string{
		"/narrate",
		"/wait",
		"/spark",
		"/wait",
		"what next?",
		"/wait",
		"/title Night Tide",
		"/show",
		"/bogus",
		"/quit",
		"ignored after quit",
	}, "\n")
	stdout, err := runCmd(t, script, "session", img)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		testParagraph,
		"A ship appears.",
		"Try a storm.",
		"Night Tide",
		"USER: what next?",
		"unknown command /bogus",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestSessionSpeakAfterFailedNarrative(t *testing.T) {
	setupTestEnv(t)
	testServiceOverride = genx.ServiceFunc(func(ctx context.Context, req *genx.Request) (genx.Response, error) {
		if req.Mode == genx.ModeFreeText && req.System == "" {
			return nil, genx.Failed("fake", genx.ModeFreeText, errors.New("quota"))
		}
		return fakeGenerate(ctx, req)
	})
	img := writeFile(t, "beach.png", pngBytes)

	script := strings.Join([]string{"/narrate", "/wait", "/speak", "/wait", "/quit"}, "\n")
	stdout, err := runCmd(t, script, "session", img)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "narration failed: story: no paragraph yet") {
		t.Errorf("placeholder was narrated:\n%s", stdout)
	}
	if strings.Contains(stdout, "narrating") {
		t.Errorf("unexpected narration:\n%s", stdout)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	setupTestEnv(t)

	stdout, err := runCmd(t, "", "config", "show", "-q", ".gemini.api_key", "-o", "raw")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "test****3456" {
		t.Errorf("api key = %q", stdout)
	}
}

func TestConfigInit(t *testing.T) {
	dir := setupTestEnv(t)

	if _, err := runCmd(t, "", "config", "init"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "", "config", "init"); err == nil {
		t.Error("second init without --force should fail")
	}
	stdout, err := runCmd(t, "", "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != filepath.Join(dir, "config.yaml") {
		t.Errorf("path = %q", stdout)
	}
}

func TestInvalidProvider(t *testing.T) {
	setupTestEnv(t)
	img := writeFile(t, "beach.png", pngBytes)

	if _, err := runCmd(t, "", "narrate", img, "--provider", "nope"); err == nil {
		t.Error("unknown provider should fail")
	}
}
