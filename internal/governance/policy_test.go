package governance

import (
	"context"
	"testing"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	// Test Allow (Default)
	req1 := Request{Service: "search", Action: "search"}
	res1, err := engine.Evaluate(ctx, req1)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res1.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s", res1.Effect)
	}

	// Test service deny
	engine.DenyService("shell")
	req2 := Request{Service: "shell", Action: "execute"}
	res2, err := engine.Evaluate(ctx, req2)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res2.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res2.Effect)
	}
}

func TestDefaultPolicyEngine_DenyAction(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	engine.DenyAction("workspace", "deleteFile")
	ctx := context.Background()

	res, err := engine.Evaluate(ctx, Request{Service: "workspace", Action: "deleteFile"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny for the blocked action, got %s", res.Effect)
	}

	res, err = engine.Evaluate(ctx, Request{Service: "workspace", Action: "readFile"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res.Effect != EffectAllow {
		t.Errorf("Other actions of the service should stay allowed, got %s", res.Effect)
	}
}

func TestDefaultPolicyEngine_DenyArguments(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	if err := engine.DenyArguments(`rm\s+-rf`); err != nil {
		t.Fatalf("DenyArguments failed: %v", err)
	}
	ctx := context.Background()

	res, err := engine.Evaluate(ctx, Request{
		Service:   "shell",
		Action:    "execute",
		Arguments: `{"command": "rm -rf /tmp/scratch"}`,
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny for matching arguments, got %s", res.Effect)
	}

	if err := engine.DenyArguments("("); err == nil {
		t.Error("an invalid pattern should be rejected")
	}
}
