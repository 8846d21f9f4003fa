package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/domain"
)

// fakeSender records role-addressed sends and answers per-role.
type fakeSender struct {
	mu          sync.Mutex
	sends       []string
	failRoles   map[string]bool
	balanceErr  error
	balanceText string
}

func (f *fakeSender) Send(_ context.Context, role, message, _ string) (*domain.Response, error) {
	f.mu.Lock()
	f.sends = append(f.sends, role)
	f.mu.Unlock()

	if f.failRoles[role] {
		return nil, errors.New("specialist backend down")
	}
	return &domain.Response{Content: "advice from " + role, Model: "m"}, nil
}

func (f *fakeSender) BalanceLoad(_ context.Context, message, _ string) (*domain.Response, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	text := f.balanceText
	if text == "" {
		text = "coordinated answer"
	}
	return &domain.Response{Content: text, Model: "m"}, nil
}

func (f *fakeSender) sentRoles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sends...)
}

func TestOrchestrateSelectsMatchingSpecialists(t *testing.T) {
	sender := &fakeSender{}
	o := New(sender, Options{})

	res, err := o.Orchestrate(context.Background(), "Plan the project timeline and write the code for the API")
	require.NoError(t, err)

	assert.Contains(t, res.ActiveSpecialists, "project_manager")
	assert.Contains(t, res.ActiveSpecialists, "lead_developer")
	assert.Equal(t, "coordinated answer", res.PrimaryResponse)

	for _, key := range res.ActiveSpecialists {
		assert.Contains(t, res.SpecialistResponses, key)
	}
}

func TestOrchestrateEmptyMessageSelectsExactlyOne(t *testing.T) {
	sender := &fakeSender{}
	o := New(sender, Options{})

	res, err := o.Orchestrate(context.Background(), "")
	require.NoError(t, err)

	assert.Len(t, res.ActiveSpecialists, 1, "no keyword matches still selects one specialist")
	assert.Equal(t, "project_manager", res.ActiveSpecialists[0], "ties go to definition order")
}

func TestOrchestrateFailedSpecialistIsOmitted(t *testing.T) {
	sender := &fakeSender{failRoles: map[string]bool{"lead_developer": true}}
	o := New(sender, Options{})

	res, err := o.Orchestrate(context.Background(), "plan the project and write the code and design")
	require.NoError(t, err)

	assert.NotContains(t, res.SpecialistResponses, "lead_developer")
	assert.Contains(t, res.SpecialistResponses, "project_manager",
		"one failing specialist must not abort the others")
}

func TestOrchestrateAllSpecialistsFailReturnsApology(t *testing.T) {
	sender := &fakeSender{failRoles: map[string]bool{
		"project_manager": true, "lead_developer": true, "business_analyst": true,
		"ui_ux_designer": true, "marketing_specialist": true, "qa_engineer": true,
		"devops_engineer": true,
	}}
	o := New(sender, Options{})

	res, err := o.Orchestrate(context.Background(), "plan the project")
	require.NoError(t, err)

	assert.Equal(t, noSpecialistsReply, res.PrimaryResponse)
	assert.Empty(t, res.SpecialistResponses)
	assert.NotEmpty(t, res.ActiveSpecialists)
}

func TestOrchestrateSynthesisFallbackConcatenates(t *testing.T) {
	sender := &fakeSender{balanceErr: errors.New("no adapter available")}
	o := New(sender, Options{})

	res, err := o.Orchestrate(context.Background(), "plan the project")
	require.NoError(t, err)

	assert.Contains(t, res.PrimaryResponse, "## Project Manager")
	assert.Contains(t, res.PrimaryResponse, "advice from project_manager")
}

func TestOrchestrateSuggestedActionsCappedAtFive(t *testing.T) {
	sender := &fakeSender{}
	o := New(sender, Options{})

	// Hits project, code, design, test, deploy keywords at once.
	res, err := o.Orchestrate(context.Background(),
		"plan the project, write the code, design the interface, test the quality, deploy to the server")
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(res.ActiveSpecialists), 3)
	assert.LessOrEqual(t, len(res.SuggestedActions), 5)
	assert.Equal(t, "Define project scope and requirements", res.SuggestedActions[0],
		"actions follow selection order")
}

func TestOrchestrateRendersPromptTemplate(t *testing.T) {
	var captured string
	sender := &capturingSender{onSend: func(role, message string) {
		if role == "qa_engineer" {
			captured = message
		}
	}}
	o := New(sender, Options{})

	_, err := o.Orchestrate(context.Background(), "how should I test this")
	require.NoError(t, err)

	assert.Contains(t, captured, "how should I test this")
	assert.NotContains(t, captured, "{message}", "placeholder must be substituted")
}

func TestSpecialistsInfo(t *testing.T) {
	o := New(&fakeSender{}, Options{})

	info := o.Specialists()
	require.Len(t, info, 7)
	require.Contains(t, info, "devops_engineer")
	assert.Equal(t, "DevOps Engineer", info["devops_engineer"].Name)
	assert.NotEmpty(t, info["devops_engineer"].Keywords)
}

func TestScoreNormalizationUsesGlobalMax(t *testing.T) {
	o := New(&fakeSender{}, Options{})

	// Many developer keywords, one QA keyword: QA's normalized score drops
	// below threshold and only the developer is selected.
	scores := o.scoreIntent("code software develop technical framework programming architecture test")
	selected := o.selectSpecialists(scores)

	keys := make([]string, len(selected))
	for i, sp := range selected {
		keys[i] = sp.Key
	}
	assert.Contains(t, keys, "lead_developer")
	assert.NotContains(t, keys, "qa_engineer",
		"a low scorer is suppressed by global-max normalization")
}

// capturingSender forwards to a callback and always succeeds.
type capturingSender struct {
	mu     sync.Mutex
	onSend func(role, message string)
}

func (c *capturingSender) Send(_ context.Context, role, message, _ string) (*domain.Response, error) {
	c.mu.Lock()
	if c.onSend != nil {
		c.onSend(role, message)
	}
	c.mu.Unlock()
	return &domain.Response{Content: "ok", Model: "m"}, nil
}

func (c *capturingSender) BalanceLoad(_ context.Context, message, _ string) (*domain.Response, error) {
	return &domain.Response{Content: strings.TrimSpace("synth"), Model: "m"}, nil
}
