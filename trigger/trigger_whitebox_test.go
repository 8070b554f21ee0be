package trigger

import (
	"encoding/json"
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/require"

	"github.com/webvolta/zammad/resource"
	"github.com/webvolta/zammad/securemailing"
)

func TestValidate(t *testing.T) {
	resource.Require(t, resource.UnitTest)

	t.Run("empty rule is valid", func(t *testing.T) {
		require.NoError(t, Trigger{}.Validate())
	})

	t.Run("unknown operator is rejected", func(t *testing.T) {
		rule := Trigger{Condition: Condition{
			"ticket.title": {Operator: "looks like"},
		}}
		require.Error(t, rule.Validate())
	})

	t.Run("unknown pre condition is rejected", func(t *testing.T) {
		rule := Trigger{Condition: Condition{
			"ticket.owner_id": {Operator: OperatorIs, PreCondition: "current_group.id"},
		}}
		require.Error(t, rule.Validate())
	})

	t.Run("working time operator requires execution_time attribute", func(t *testing.T) {
		rule := Trigger{Condition: Condition{
			"ticket.title": {Operator: OperatorIsInWorkingTime, Value: uuid.NewV4().String()},
		}}
		require.Error(t, rule.Validate())

		rule = Trigger{Condition: Condition{
			"execution_time.calendar_id": {Operator: OperatorIsInWorkingTime, Value: uuid.NewV4().String()},
		}}
		require.NoError(t, rule.Validate())
	})

	t.Run("execution_time attribute requires working time operator", func(t *testing.T) {
		rule := Trigger{Condition: Condition{
			"execution_time.calendar_id": {Operator: OperatorIs, Value: "x"},
		}}
		require.Error(t, rule.Validate())
	})

	t.Run("unknown condition entity is rejected", func(t *testing.T) {
		rule := Trigger{Condition: Condition{
			"organization.name": {Operator: OperatorIs, Value: "x"},
		}}
		require.Error(t, rule.Validate())
	})

	t.Run("notification without recipient is rejected", func(t *testing.T) {
		rule := Trigger{Perform: Perform{
			{Path: PathNotificationEmail, Action: NotificationAction{Subject: "Hello", Body: "World!"}},
		}}
		err := rule.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "recipient is missing!")
	})

	t.Run("notification with recipient is valid", func(t *testing.T) {
		rule := Trigger{Perform: Perform{
			{Path: PathNotificationEmail, Action: NotificationAction{
				Recipient: NewRecipientSpec("ticket_customer"),
				Subject:   "Hello",
				Body:      "World!",
			}},
		}}
		require.NoError(t, rule.Validate())
	})

	t.Run("unknown security policy is rejected", func(t *testing.T) {
		rule := Trigger{Perform: Perform{
			{Path: PathNotificationEmail, Action: NotificationAction{
				Recipient: NewRecipientSpec("ticket_customer"),
				Sign:      securemailing.Policy("maybe"),
			}},
		}}
		require.Error(t, rule.Validate())
	})

	t.Run("attribute write to unknown attribute is rejected", func(t *testing.T) {
		rule := Trigger{Perform: Perform{
			{Path: "ticket.does_not_exist", Action: AttributeAction{Value: "x"}},
		}}
		require.Error(t, rule.Validate())
	})

	t.Run("relative date needs a known range", func(t *testing.T) {
		rule := Trigger{Perform: Perform{
			{Path: "ticket.pending_time", Action: DateAction{Operator: DateOperatorRelative, Value: "10", Range: "fortnight"}},
		}}
		require.Error(t, rule.Validate())

		rule = Trigger{Perform: Perform{
			{Path: "ticket.pending_time", Action: DateAction{Operator: DateOperatorRelative, Value: "10", Range: RangeDay}},
		}}
		require.NoError(t, rule.Validate())
	})

	t.Run("tags need an operator and at least one tag", func(t *testing.T) {
		rule := Trigger{Perform: Perform{
			{Path: "ticket.tags", Action: TagsAction{Operator: TagOperatorAdd, Value: " , "}},
		}}
		require.Error(t, rule.Validate())
	})

	t.Run("free-form entry is rejected instead of silently matching", func(t *testing.T) {
		rule := Trigger{Perform: Perform{
			{Path: "salesforce.sync", Action: UnknownAction{Raw: json.RawMessage(`{"value":"x"}`)}},
		}}
		err := rule.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "unsupported action")
	})
}

func TestPerformJSON(t *testing.T) {
	resource.Require(t, resource.UnitTest)

	t.Run("declaration order survives the round trip", func(t *testing.T) {
		raw := `{
			"ticket.state_id": {"value": "aaaaaaaa-0000-0000-0000-000000000001"},
			"notification.email": {"recipient": "ticket_customer", "subject": "Hello", "body": "World!"},
			"ticket.title": {"value": "closed by rule"}
		}`
		var perform Perform
		require.NoError(t, json.Unmarshal([]byte(raw), &perform))
		require.Len(t, perform, 3)
		require.Equal(t, "ticket.state_id", perform[0].Path)
		require.Equal(t, PathNotificationEmail, perform[1].Path)
		require.Equal(t, "ticket.title", perform[2].Path)

		out, err := json.Marshal(perform)
		require.NoError(t, err)
		var again Perform
		require.NoError(t, json.Unmarshal(out, &again))
		require.Len(t, again, 3)
		require.Equal(t, "ticket.state_id", again[0].Path)
		require.Equal(t, PathNotificationEmail, again[1].Path)
		require.Equal(t, "ticket.title", again[2].Path)
	})

	t.Run("actions are typed by target path", func(t *testing.T) {
		raw := `{
			"ticket.title": {"value": "x"},
			"ticket.pending_time": {"operator": "relative", "value": "2", "range": "hour"},
			"ticket.tags": {"operator": "add", "value": "vip, urgent"},
			"notification.email": {"recipient": ["ticket_customer", "ticket_owner"], "subject": "s", "body": "b"}
		}`
		var perform Perform
		require.NoError(t, json.Unmarshal([]byte(raw), &perform))
		require.IsType(t, AttributeAction{}, perform[0].Action)
		require.IsType(t, DateAction{}, perform[1].Action)
		require.IsType(t, TagsAction{}, perform[2].Action)
		require.IsType(t, NotificationAction{}, perform[3].Action)

		tags := perform[2].Action.(TagsAction)
		require.Equal(t, []string{"vip", "urgent"}, tags.Tags())

		notify := perform[3].Action.(NotificationAction)
		require.Equal(t, []string{"ticket_customer", "ticket_owner"}, notify.Recipient.Entries())
		require.False(t, notify.Recipient.Scalar())
	})

	t.Run("free-form entry becomes an unknown action", func(t *testing.T) {
		raw := `{"salesforce.sync": {"value": "x"}}`
		var perform Perform
		require.NoError(t, json.Unmarshal([]byte(raw), &perform))
		require.Len(t, perform, 1)
		require.IsType(t, UnknownAction{}, perform[0].Action)
	})

	t.Run("scalar recipient keeps its arity", func(t *testing.T) {
		raw := `{"notification.email": {"recipient": "ticket_customer", "subject": "s", "body": "b"}}`
		var perform Perform
		require.NoError(t, json.Unmarshal([]byte(raw), &perform))
		notify := perform[0].Action.(NotificationAction)
		require.True(t, notify.Recipient.Scalar())
		require.Equal(t, []string{"ticket_customer"}, notify.Recipient.Entries())

		out, err := json.Marshal(perform)
		require.NoError(t, err)
		require.Contains(t, string(out), `"recipient":"ticket_customer"`)
	})
}

func TestSortRules(t *testing.T) {
	resource.Require(t, resource.UnitTest)

	lowID := uuid.FromStringOrNil("00000000-0000-0000-0000-000000000001")
	highID := uuid.FromStringOrNil("ffffffff-0000-0000-0000-000000000001")
	rules := []Trigger{
		{ID: highID, Priority: 2},
		{ID: highID, Priority: 1},
		{ID: lowID, Priority: 1},
	}
	SortRules(rules)
	require.Equal(t, lowID, rules[0].ID)
	require.Equal(t, 1, rules[0].Priority)
	require.Equal(t, highID, rules[1].ID)
	require.Equal(t, 1, rules[1].Priority)
	require.Equal(t, 2, rules[2].Priority)
}

func TestInMemoryStore(t *testing.T) {
	resource.Require(t, resource.UnitTest)

	store := NewInMemoryStore()
	require.NoError(t, store.Add(Trigger{ID: uuid.NewV4(), Name: "active", Active: true, Priority: 2}))
	require.NoError(t, store.Add(Trigger{ID: uuid.NewV4(), Name: "inactive", Active: false}))
	require.NoError(t, store.Add(Trigger{ID: uuid.NewV4(), Name: "first", Active: true, Priority: 1}))

	// invalid rules never reach the store
	require.Error(t, store.Add(Trigger{Condition: Condition{"ticket.title": {Operator: "bogus"}}}))

	rules, err := store.ActiveRules(nil)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, "first", rules[0].Name)
	require.Equal(t, "active", rules[1].Name)
}
