package audience

// Member is a single audience record as stored, keyed by field name.
type Member map[string]interface{}

func (m Member) stringField(names ...string) string {
	for _, name := range names {
		if v, ok := m[name]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// ID returns the member identifier, falling back to the raw document id.
func (m Member) ID() string {
	return m.stringField("member_id", "_id", "id")
}

func (m Member) Email() string {
	return m.stringField("email")
}
