package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chorusdev/chorus/pkg/apperr"
	"github.com/pelletier/go-toml/v2"
)

// legacyWorkflowIntegration is the pre-tree-form shape: a flat analyzer
// model name, an ordered list of worker model names, and a synthesizer
// model name, with no notion of a selector or nested sub-plans.
type legacyWorkflowIntegration struct {
	AnalyzerModel    string   `toml:"analyzer_model"`
	WorkerModels     []string `toml:"worker_models"`
	SynthesizerModel string   `toml:"synthesizer_model"`
}

type legacyDoc struct {
	WorkflowIntegration legacyWorkflowIntegration `toml:"workflow-integration"`
}

// migrateIfLegacy inspects raw for the legacy flat workflow-integration
// form. If found, it converts it to the tree form, backs up the original
// file, writes the migrated document back to path, and returns the
// migrated bytes. If raw is already in tree form (or any other form),
// it is returned unchanged.
func migrateIfLegacy(path string, raw []byte) ([]byte, error) {
	var legacy legacyDoc
	if err := toml.Unmarshal(raw, &legacy); err != nil {
		// Not parseable as the legacy shape either; let the caller's
		// normal unmarshal report the real error.
		return raw, nil
	}
	if legacy.WorkflowIntegration.AnalyzerModel == "" {
		return raw, nil
	}

	treeJSON, err := legacyToTreeJSON(legacy.WorkflowIntegration)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, "failed to convert legacy workflow configuration", err)
	}

	var doc map[string]interface{}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, "failed to parse legacy config file for migration", err)
	}
	doc["workflow-integration"] = map[string]interface{}{
		"nested_worker_depth": 1,
		"json":                treeJSON,
	}

	migrated, err := toml.Marshal(doc)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, "failed to render migrated configuration", err)
	}

	if err := backupOriginal(path, raw); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, migrated, 0o644); err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, fmt.Sprintf("failed to write migrated config file %q", path), err)
	}

	return migrated, nil
}

func legacyToTreeJSON(w legacyWorkflowIntegration) (string, error) {
	type nodeRef struct {
		Ref string `json:"ref"`
	}
	tree := struct {
		Analyzer    nodeRef   `json:"analyzer"`
		Workers     []nodeRef `json:"workers"`
		Synthesizer nodeRef   `json:"synthesizer"`
	}{
		Analyzer:    nodeRef{Ref: w.AnalyzerModel},
		Synthesizer: nodeRef{Ref: w.SynthesizerModel},
	}
	for _, m := range w.WorkerModels {
		tree.Workers = append(tree.Workers, nodeRef{Ref: m})
	}

	encoded, err := json.Marshal(tree)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// backupOriginal preserves raw at path+".bak", or at path+".bak.<unix
// timestamp>" if a .bak already exists, so migration never clobbers a
// previously saved backup.
func backupOriginal(path string, raw []byte) error {
	backupPath := path + ".bak"
	if _, err := os.Stat(backupPath); err == nil {
		backupPath = fmt.Sprintf("%s.bak.%d", path, time.Now().Unix())
	}
	if err := os.WriteFile(backupPath, raw, 0o644); err != nil {
		return apperr.Wrap(apperr.ConfigInvalid, fmt.Sprintf("failed to write config backup %q", backupPath), err)
	}
	return nil
}
