package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirectoryWritebackWorkflow(t *testing.T) {
	env := setupCLITestEnv(t)

	modDir := filepath.Join(env.baseDir, "modpack")
	memberPath := filepath.Join(modDir, "assets", "swordmod", "lang", "es_es.json")
	if err := os.MkdirAll(filepath.Dir(memberPath), 0o755); err != nil {
		t.Fatalf("mkdir member dir: %v", err)
	}
	if err := os.WriteFile(memberPath, []byte(`{"item.sword":"Sword"}`), 0o644); err != nil {
		t.Fatalf("write member: %v", err)
	}

	upstream := writeEntriesFile(t, filepath.Join(env.baseDir, "upstream.json"),
		map[string]string{"item.sword": "Sword"})
	translated := writeEntriesFile(t, filepath.Join(env.baseDir, "translated.json"),
		map[string]string{"item.sword": "Espada"})

	out := mustRunCLI(t, env, "ingest", upstream,
		"--artifact", modDir, "--mod-id", "swordmod", "--locale", "es_es")
	containerID := extractField(t, out, "Container:")

	out = mustRunCLI(t, env, "patch", "create", "es-fixes", "--description", "Spanish fixes")
	setID := lastWord(t, out)

	out = mustRunCLI(t, env, "patch", "add", setID, translated,
		"--container", containerID, "--locale", "es_es", "--policy", "replace")
	requireContains(t, out, "Anchored to upstream blob")

	out = mustRunCLI(t, env, "patch", "publish", setID)
	requireContains(t, out, "Published "+setID)

	out = mustRunCLI(t, env, "apply", "plan", setID)
	planID := lastWord(t, out)

	out = mustRunCLI(t, env, "apply", "run", planID)
	runID := ""
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 3 && fields[0] == "Run" && fields[2] == "succeeded" {
			runID = fields[1]
		}
	}
	if runID == "" {
		t.Fatalf("apply run did not report success: %s", out)
	}

	data, err := os.ReadFile(memberPath)
	if err != nil {
		t.Fatalf("read member after apply: %v", err)
	}
	if got := string(data); got != `{"item.sword":"Espada"}` {
		t.Fatalf("member content = %s", got)
	}

	report := mustRunCLI(t, env, "apply", "report", runID, "--json")
	requireContains(t, report, `"success_rate": 1`)

	listing := mustRunCLI(t, env, "patch", "list", "--status", "applied")
	requireContains(t, listing, setID)

	stats := mustRunCLI(t, env, "blob", "stats")
	requireContains(t, stats, "Dedup ratio")
}

func TestOverlayWorkflowWithoutUpstreamFile(t *testing.T) {
	env := setupCLITestEnv(t)

	modDir := filepath.Join(env.baseDir, "modpack")
	if err := os.MkdirAll(modDir, 0o755); err != nil {
		t.Fatalf("mkdir mod dir: %v", err)
	}

	translated := writeEntriesFile(t, filepath.Join(env.baseDir, "de.json"),
		map[string]string{"item.shield": "Schild"})

	seed := writeEntriesFile(t, filepath.Join(env.baseDir, "seed.json"),
		map[string]string{"item.shield": "Shield"})
	out := mustRunCLI(t, env, "ingest", seed,
		"--artifact", modDir, "--mod-id", "shieldmod", "--locale", "en_us")
	containerID := extractField(t, out, "Container:")

	out = mustRunCLI(t, env, "patch", "create", "de-overlay")
	setID := lastWord(t, out)
	mustRunCLI(t, env, "patch", "add", setID, translated,
		"--container", containerID, "--locale", "de_de", "--policy", "overlay")
	mustRunCLI(t, env, "patch", "publish", setID)

	out = mustRunCLI(t, env, "apply", "plan", setID)
	planID := lastWord(t, out)
	out = mustRunCLI(t, env, "apply", "run", planID)
	requireContains(t, out, "succeeded")

	overlayFile := filepath.Join(env.baseDir, "overlays", "localization_overlay",
		"assets", "shieldmod", "lang", "de_de.json")
	data, err := os.ReadFile(overlayFile)
	if err != nil {
		t.Fatalf("read overlay file: %v", err)
	}
	if got := string(data); got != `{"item.shield":"Schild"}` {
		t.Fatalf("overlay content = %s", got)
	}
	meta := filepath.Join(env.baseDir, "overlays", "localization_overlay", "pack.mcmeta")
	if _, err := os.Stat(meta); err != nil {
		t.Fatalf("expected pack.mcmeta: %v", err)
	}
}

func TestPublishFailsQualityGate(t *testing.T) {
	env := setupCLITestEnv(t)

	modDir := filepath.Join(env.baseDir, "modpack")
	if err := os.MkdirAll(modDir, 0o755); err != nil {
		t.Fatalf("mkdir mod dir: %v", err)
	}
	upstream := writeEntriesFile(t, filepath.Join(env.baseDir, "upstream.json"),
		map[string]string{"chat.greet": "Hello %s!"})
	broken := writeEntriesFile(t, filepath.Join(env.baseDir, "broken.json"),
		map[string]string{"chat.greet": "Bonjour!"})

	out := mustRunCLI(t, env, "ingest", upstream,
		"--artifact", modDir, "--mod-id", "chatmod", "--locale", "fr_fr")
	containerID := extractField(t, out, "Container:")

	out = mustRunCLI(t, env, "patch", "create", "fr-broken")
	setID := lastWord(t, out)
	mustRunCLI(t, env, "patch", "add", setID, broken,
		"--container", containerID, "--locale", "fr_fr", "--policy", "replace")

	published, _, err := runCLI(t, []string{"patch", "publish", setID}, env.configPath)
	if err == nil {
		t.Fatal("expected publish to fail the quality gate")
	}
	requireContains(t, published, "placeholder_consistency")

	listing := mustRunCLI(t, env, "patch", "list", "--status", "draft")
	requireContains(t, listing, setID)
}
