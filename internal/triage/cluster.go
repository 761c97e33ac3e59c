package triage

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jpoley/scantriage/models"
)

// helperCallRe extracts function-call identifiers from a code snippet, used
// as the structural signature for pattern clustering.
var helperCallRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// callKeywords are language keywords that look like calls in a snippet.
var callKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"func": true, "def": true, "catch": true, "print": true,
}

// helperSignature returns the first function name called in the snippet, or
// "" when none is found.
func helperSignature(snippet string) string {
	for _, m := range helperCallRe.FindAllStringSubmatch(snippet, 4) {
		name := m[1]
		if !callKeywords[strings.ToLower(name)] {
			return name
		}
	}
	return ""
}

// clusterFindings groups triaged findings that share category and file, or
// category and helper-call signature. A finding joins at most one cluster;
// pattern clusters take precedence over file clusters. Singletons stay
// unclustered. The pass is a pure function of its input, so re-clustering
// the same set is idempotent.
func clusterFindings(triaged []models.TriagedFinding) []models.Cluster {
	// Work over indices sorted by fingerprint so cluster membership order
	// never depends on input order.
	order := make([]int, len(triaged))
	for i := range triaged {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return triaged[order[a]].Finding.Fingerprint < triaged[order[b]].Finding.Fingerprint
	})

	byPattern := map[string][]int{}
	for _, i := range order {
		f := triaged[i].Finding
		sig := helperSignature(f.Snippet)
		if sig == "" {
			continue
		}
		key := f.Category + "|" + sig
		byPattern[key] = append(byPattern[key], i)
	}

	var clusters []models.Cluster
	assigned := map[int]bool{}

	for _, key := range sortedKeys(byPattern) {
		members := byPattern[key]
		if len(members) < 2 {
			continue
		}
		parts := strings.SplitN(key, "|", 2)
		c := models.Cluster{
			ID:        fmt.Sprintf("pattern:%s:%s", parts[0], parts[1]),
			Kind:      "pattern",
			Category:  parts[0],
			Signature: parts[1],
		}
		for _, i := range members {
			c.Fingerprints = append(c.Fingerprints, triaged[i].Finding.Fingerprint)
			assigned[i] = true
		}
		clusters = append(clusters, c)
	}

	byFile := map[string][]int{}
	for _, i := range order {
		if assigned[i] {
			continue
		}
		f := triaged[i].Finding
		if f.Location.FilePath == "" {
			continue
		}
		key := f.Category + "|" + f.Location.FilePath
		byFile[key] = append(byFile[key], i)
	}

	for _, key := range sortedKeys(byFile) {
		members := byFile[key]
		if len(members) < 2 {
			continue
		}
		parts := strings.SplitN(key, "|", 2)
		c := models.Cluster{
			ID:        fmt.Sprintf("file:%s:%s", parts[0], parts[1]),
			Kind:      "file",
			Category:  parts[0],
			Signature: parts[1],
		}
		for _, i := range members {
			c.Fingerprints = append(c.Fingerprints, triaged[i].Finding.Fingerprint)
			assigned[i] = true
		}
		clusters = append(clusters, c)
	}

	// Stamp cluster IDs back onto the findings.
	idByFP := map[string]string{}
	for _, c := range clusters {
		for _, fp := range c.Fingerprints {
			idByFP[fp] = c.ID
		}
	}
	for i := range triaged {
		triaged[i].ClusterID = idByFP[triaged[i].Finding.Fingerprint]
	}

	sort.Slice(clusters, func(a, b int) bool { return clusters[a].ID < clusters[b].ID })
	return clusters
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
