package transcript

import "testing"

func TestMetricsTable(t *testing.T) {
	t.Run("latest tracks insertion order", func(t *testing.T) {
		tab := newMetricsTable()
		tab.put(MetricsRecord{CorrelationID: "c1", ObservedAt: 1000})
		tab.put(MetricsRecord{CorrelationID: "c2", ObservedAt: 2000})

		rec, ok := tab.latest()
		if !ok || rec.CorrelationID != "c2" {
			t.Errorf("expected c2 as latest, got %+v", rec)
		}
	})

	t.Run("overwrite moves the key to latest", func(t *testing.T) {
		tab := newMetricsTable()
		tab.put(MetricsRecord{CorrelationID: "c1", ObservedAt: 1000})
		tab.put(MetricsRecord{CorrelationID: "c2", ObservedAt: 2000})
		tab.put(MetricsRecord{CorrelationID: "c1", ObservedAt: 3000, Stages: Latency{LanguageModel: 250}})

		rec, ok := tab.latest()
		if !ok || rec.CorrelationID != "c1" {
			t.Fatalf("re-inserted key should be latest, got %+v", rec)
		}
		if rec.Stages.LanguageModel != 250 {
			t.Errorf("overwrite lost stages: %+v", rec.Stages)
		}
		if got := len(tab.snapshot()); got != 2 {
			t.Errorf("overwrite must not grow the table, got %d records", got)
		}
	})

	t.Run("get misses unknown ids", func(t *testing.T) {
		tab := newMetricsTable()
		if _, ok := tab.get("nope"); ok {
			t.Error("unexpected hit")
		}
		if _, ok := tab.latest(); ok {
			t.Error("empty table has no latest")
		}
	})

	t.Run("snapshot copies records", func(t *testing.T) {
		tab := newMetricsTable()
		tab.put(MetricsRecord{CorrelationID: "c1", Stages: Latency{VoiceActivity: 50}})

		snap := tab.snapshot()
		snap[0].Stages.VoiceActivity = 999

		rec, _ := tab.get("c1")
		if rec.Stages.VoiceActivity != 50 {
			t.Errorf("snapshot must not alias table storage, got %v", rec.Stages.VoiceActivity)
		}
	})
}
