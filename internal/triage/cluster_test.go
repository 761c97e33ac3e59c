package triage

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/jpoley/scantriage/models"
)

func TestHelperSignature(t *testing.T) {
	tests := []struct {
		snippet string
		want    string
	}{
		{`renderTemplate(userInput)`, "renderTemplate"},
		{`if (ok) { sanitize(x) }`, "sanitize"},
		{`return buildQuery(id)`, "buildQuery"},
		{`x := a + b`, ""},
		{``, ""},
		{`for (i = 0; i < n; i++) {}`, ""},
	}
	for _, tc := range tests {
		if got := helperSignature(tc.snippet); got != tc.want {
			t.Errorf("helperSignature(%q) = %q, want %q", tc.snippet, got, tc.want)
		}
	}
}

func clusterFixture() []models.TriagedFinding {
	mk := func(path, category, snippet string) models.TriagedFinding {
		return models.TriagedFinding{Finding: mkFinding(path, category, "HIGH", snippet)}
	}
	return []models.TriagedFinding{
		// Same vulnerable helper used in two files: pattern cluster. The
		// first of these shares a file and category with nothing else once
		// pattern clustering claims it, so no CWE-79 file cluster forms.
		mk("web/profile.go", "CWE-79", "renderRaw(bio)"),
		mk("web/comments.go", "CWE-79", "renderRaw(comment)"),
		mk("web/profile.go", "CWE-79", "echo untouched"),
		// Two findings of one category piled into one file: file cluster.
		mk("db/store.go", "CWE-89", "id concat one"),
		mk("db/store.go", "CWE-89", "id concat two"),
		// Singleton stays unclustered.
		mk("auth/keys.go", "CWE-798", "x := secretValue"),
	}
}

func TestClusterPatternTakesPrecedenceOverFile(t *testing.T) {
	triaged := clusterFixture()
	clusters := clusterFindings(triaged)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d: %+v", len(clusters), clusters)
	}

	byKind := map[string]models.Cluster{}
	for _, c := range clusters {
		byKind[c.Kind] = c
	}

	pat, ok := byKind["pattern"]
	if !ok {
		t.Fatal("no pattern cluster found")
	}
	if pat.Category != "CWE-79" || pat.Signature != "renderRaw" {
		t.Fatalf("pattern cluster = %+v", pat)
	}
	if len(pat.Fingerprints) != 2 {
		t.Fatalf("pattern cluster has %d members, want 2", len(pat.Fingerprints))
	}

	file, ok := byKind["file"]
	if !ok {
		t.Fatal("no file cluster found")
	}
	if file.Category != "CWE-89" || file.Signature != "db/store.go" {
		t.Fatalf("file cluster = %+v", file)
	}

	for _, tf := range triaged {
		var want string
		switch tf.Finding.Snippet {
		case "renderRaw(bio)", "renderRaw(comment)":
			want = pat.ID
		case "id concat one", "id concat two":
			want = file.ID
		default:
			// Singletons stay unclustered, including the lone CWE-79
			// finding left in web/profile.go after pattern clustering.
			want = ""
		}
		if tf.ClusterID != want {
			t.Fatalf("%s %q has cluster %q, want %q",
				tf.Finding.Location.FilePath, tf.Finding.Snippet, tf.ClusterID, want)
		}
	}
}

func TestClusterStableAcrossInputOrder(t *testing.T) {
	base := clusterFixture()
	want := clusterFindings(append([]models.TriagedFinding(nil), base...))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]models.TriagedFinding(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got := clusterFindings(shuffled)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("clusters differ after shuffle %d:\ngot  %+v\nwant %+v", i, got, want)
		}
	}
}

func TestClusterFindingsIdempotent(t *testing.T) {
	triaged := clusterFixture()
	first := clusterFindings(triaged)
	second := clusterFindings(triaged)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("re-clustering the same set produced different clusters")
	}
}
