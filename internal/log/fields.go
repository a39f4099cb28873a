package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldChatID     = "chat_id"
	FieldUserID     = "user_id"
	FieldCommand    = "command"
	FieldFlow       = "flow"
	FieldStep       = "step"
	FieldKind       = "kind"
	FieldCategory   = "category"
	FieldAmount     = "amount"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentBot      = "bot"
	ComponentTelegram = "telegram"
	ComponentHTTP     = "http"
	ComponentSheets   = "sheets"
	ComponentBudget   = "budget"
	ComponentReminder = "reminder"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentCache    = "cache"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithChat adds the chat and the user that sent the update.
func (f LogFields) WithChat(chatID, userID int64) LogFields {
	f[FieldChatID] = chatID
	f[FieldUserID] = userID
	return f
}

// WithFlow adds the conversation kind and step.
func (f LogFields) WithFlow(flow, step string) LogFields {
	f[FieldFlow] = flow
	if step != "" {
		f[FieldStep] = step
	}
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithHTTP adds request and response fields.
func (f LogFields) WithHTTP(method, path string, status int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = status
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to slog arguments, sorted by key.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
