package sessions

import "testing"

func TestNormalizeAgentID(t *testing.T) {
	cases := map[string]string{
		"":                  "main",
		"Main":              "main",
		"my agent!!":        "my-agent",
		"--leading-trail--": "leading-trail",
	}
	for in, want := range cases {
		if got := NormalizeAgentID(in); got != want {
			t.Errorf("NormalizeAgentID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeAgentID_Truncates(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	got := NormalizeAgentID(long)
	if len(got) != maxAgentIDLength {
		t.Errorf("length = %d, want %d", len(got), maxAgentIDLength)
	}
}

func TestResolve_Empty(t *testing.T) {
	if got, want := Resolve(ResolveOpts{}), "agent:main:main"; got != want {
		t.Errorf("Resolve(empty) = %q, want %q", got, want)
	}
}

func TestResolve_AgentIDOnlyDefaultsRestToMain(t *testing.T) {
	got := Resolve(ResolveOpts{AgentID: "research"})
	if got != "agent:research:main" {
		t.Errorf("Resolve = %q, want %q", got, "agent:research:main")
	}
}

func TestResolve_SessionKeyTakesPrecedenceOverSessionID(t *testing.T) {
	got := Resolve(ResolveOpts{SessionKey: "worker", SessionID: "other"})
	if got != "agent:main:worker" {
		t.Errorf("Resolve = %q, want %q", got, "agent:main:worker")
	}
}

func TestResolve_AlreadyPrefixedIsIdentity(t *testing.T) {
	key := "agent:worker:channel-42"
	got := Resolve(ResolveOpts{SessionKey: key})
	if got != key {
		t.Errorf("Resolve(%q) = %q, want identity", key, got)
	}
	again := Resolve(ResolveOpts{SessionKey: got})
	if again != got {
		t.Errorf("Resolve is not idempotent: %q then %q", got, again)
	}
}

func TestResolve_FallsBackToSessionID(t *testing.T) {
	got := Resolve(ResolveOpts{SessionID: "legacy-id"})
	if got != "agent:main:legacy-id" {
		t.Errorf("Resolve = %q, want %q", got, "agent:main:legacy-id")
	}
}

func TestResolve_AgentIDAndDistinctRestForSubagentKeys(t *testing.T) {
	got := Resolve(ResolveOpts{AgentID: "research", SessionID: "subagent-42"})
	want := "agent:research:subagent-42"
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestNormalizeKey_TreatsBareKeyAsSessionID(t *testing.T) {
	got := NormalizeKey("user123")
	if got != "agent:main:user123" {
		t.Errorf("NormalizeKey = %q, want %q", got, "agent:main:user123")
	}
}
