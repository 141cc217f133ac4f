package main

import (
	"github.com/ruizrica/driftgate/internal/engine"
	"github.com/ruizrica/driftgate/internal/gate"
)

// Minimal SARIF 2.1.0 output so findings can be uploaded to code
// scanning dashboards. Only the fields those consumers require are
// emitted.

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	InformationURI string `json:"informationUri"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

func sarifFromReport(report *engine.RunReport) sarifLog {
	results := make([]sarifResult, 0)
	for _, gr := range report.GateResults {
		for _, f := range gr.Findings {
			res := sarifResult{
				RuleID:  f.RuleID,
				Level:   sarifLevel(f.Severity),
				Message: sarifMessage{Text: f.Message},
			}
			if res.RuleID == "" {
				res.RuleID = string(gr.GateID)
			}
			if f.File != "" {
				loc := sarifLocation{
					PhysicalLocation: sarifPhysicalLocation{
						ArtifactLocation: sarifArtifactLocation{URI: f.File},
					},
				}
				if f.Line > 0 {
					loc.PhysicalLocation.Region = &sarifRegion{StartLine: f.Line}
				}
				res.Locations = []sarifLocation{loc}
			}
			results = append(results, res)
		}
	}
	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:           "driftgate",
				Version:        version,
				InformationURI: "https://github.com/ruizrica/driftgate",
			}},
			Results: results,
		}},
	}
}

func sarifLevel(s gate.Severity) string {
	switch s {
	case gate.SeverityError, gate.SeverityCritical:
		return "error"
	case gate.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}
