package logger

import (
	"testing"
)

type recorder struct {
	entries []string
	kvs     [][]any
}

func (r *recorder) record(level, message string, keyvals []any) {
	r.entries = append(r.entries, level+":"+message)
	r.kvs = append(r.kvs, keyvals)
}

func (r *recorder) Log(m string, kv ...any)   { r.record("log", m, kv) }
func (r *recorder) Debug(m string, kv ...any) { r.record("debug", m, kv) }
func (r *recorder) Info(m string, kv ...any)  { r.record("info", m, kv) }
func (r *recorder) Warn(m string, kv ...any)  { r.record("warn", m, kv) }
func (r *recorder) Error(m string, kv ...any) { r.record("error", m, kv) }
func (r *recorder) Fatal(m string, kv ...any) { r.record("fatal", m, kv) }

func TestDispatchesToAllInstances(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	t.Cleanup(func() { singleton = nil })

	Info("hello", "k", 1)
	Log("plain", "k", 2)

	for _, r := range []*recorder{a, b} {
		if len(r.entries) != 2 || r.entries[0] != "info:hello" || r.entries[1] != "log:plain" {
			t.Fatalf("unexpected entries %v", r.entries)
		}
		if len(r.kvs[1]) != 2 || r.kvs[1][1] != 2 {
			t.Fatalf("keyvals not forwarded: %v", r.kvs[1])
		}
	}
}

func TestUninitializedIsNoop(t *testing.T) {
	singleton = nil
	Warn("ignored", "k", "v")
}
