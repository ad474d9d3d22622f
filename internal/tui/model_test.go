package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestModelInitLoadsCounts(t *testing.T) {
	t.Parallel()

	model := NewModel(testOptions(&fakeClient{}))
	cmd := model.Init()
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, countsMsg{}, msg)

	next, _ := model.Update(msg)
	state := next.(Model)
	require.Equal(t, "groups=3 grades=40", state.summary)
	require.Contains(t, state.View(), "groups=3 grades=40")
	require.Contains(t, state.View(), "top-students")
}

func TestReportWithoutParamsRunsImmediately(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	model := NewModel(testOptions(client))

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, resultMsg{}, msg)
	require.Equal(t, "top-students", client.lastName)
	require.Empty(t, client.lastArgs)

	final, _ := updated.(Model).Update(msg)
	state := final.(Model)
	require.Equal(t, ScreenResult, state.screen)
	require.Contains(t, state.View(), "Ada Lovelace")

	back, _ := state.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, ScreenReports, back.(Model).screen)
}

func TestReportPromptsForEachParam(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	model := NewModel(testOptions(client))
	model.reportsList.Select(1)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	state := updated.(Model)
	require.Equal(t, ScreenParams, state.screen)
	require.Contains(t, state.View(), "Group id")

	state.paramInput.SetValue("abc")
	updated, cmd := state.Update(tea.KeyMsg{Type: tea.KeyEnter})
	state = updated.(Model)
	require.Nil(t, cmd)
	require.Contains(t, state.err, "positive number")

	state.paramInput.SetValue("2")
	updated, cmd = state.Update(tea.KeyMsg{Type: tea.KeyEnter})
	state = updated.(Model)
	require.Nil(t, cmd)
	require.Equal(t, ScreenParams, state.screen)
	require.Contains(t, state.View(), "Subject id")

	state.paramInput.SetValue("5")
	updated, cmd = state.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()
	require.Equal(t, "group-grades", client.lastName)
	require.Equal(t, map[string]int64{"group": 2, "subject": 5}, client.lastArgs)

	final, _ := updated.(Model).Update(msg)
	require.Equal(t, ScreenResult, final.(Model).screen)
}

func TestReportErrorReturnsToList(t *testing.T) {
	t.Parallel()

	client := &fakeClient{runErr: errors.New("database is locked")}
	model := NewModel(testOptions(client))

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	msg := cmd()
	final, _ := model.Update(msg)
	state := final.(Model)
	require.Equal(t, ScreenReports, state.screen)
	require.Contains(t, state.View(), "Error: database is locked")
}

func TestEmptyResultShowsPlaceholder(t *testing.T) {
	t.Parallel()

	require.Equal(t, "No rows.", renderTable(Table{Headers: []string{"ID"}}))
	require.Equal(t, "no result", renderTable(Table{Empty: "no result"}))
}

func TestQuitKeys(t *testing.T) {
	t.Parallel()

	model := NewModel(testOptions(&fakeClient{}))
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRunRequiresTTY(t *testing.T) {
	t.Parallel()

	opts := testOptions(&fakeClient{})
	opts.IsTTY = func() bool { return false }
	require.Error(t, Run(context.Background(), opts))
}

func testOptions(client *fakeClient) Options {
	return Options{
		Client: client,
		Reports: []Report{
			{Number: 1, Name: "top-students", Title: "Top 5 students by average grade"},
			{Number: 7, Name: "group-grades", Title: "Grades of a group's students in a subject", Params: []string{"group", "subject"}},
		},
		Tables: []string{"groups", "grades"},
	}
}

type fakeClient struct {
	runErr   error
	lastName string
	lastArgs map[string]int64
}

func (f *fakeClient) Counts(context.Context) (map[string]int64, error) {
	return map[string]int64{"groups": 3, "grades": 40}, nil
}

func (f *fakeClient) RunReport(_ context.Context, name string, args map[string]int64) (Table, error) {
	f.lastName = name
	f.lastArgs = args
	if f.runErr != nil {
		return Table{}, f.runErr
	}
	return Table{
		Headers: []string{"ID", "Student", "Average"},
		Rows:    [][]string{{"1", "Ada Lovelace", "11.50"}},
	}, nil
}
