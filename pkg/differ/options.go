package differ

// Option is a functional option for configuring a Differ.
type Option func(*differ)

// WithIgnoredFields sets fields to leave out of the comparison.
func WithIgnoredFields(fields ...string) Option {
	return func(d *differ) {
		for _, field := range fields {
			d.ignoreFields[field] = true
		}
	}
}

// WithIdentityMatching enables or disables matching rows without a known
// id by their normalized identity key. When disabled only ids match.
func WithIdentityMatching(enabled bool) Option {
	return func(d *differ) {
		d.identityMatching = enabled
	}
}

// WithOrderedTags makes tag order significant. By default tags compare as sets.
func WithOrderedTags(enabled bool) Option {
	return func(d *differ) {
		d.orderedTags = enabled
	}
}
