// Package secrets fetches a single secret, an API key, from one of a
// closed set of providers and publishes it to the workflow.
//
// The providers are:
//   - Raw: the value was passed in directly
//   - Doppler: read with the doppler CLI
//   - OnePassword: read with the 1Password CLI, op
//
// Usage:
//
//	p, err := secrets.NewProvider(tag, inputs)
//	value, err := resolver.Resolve(ctx, p)
//	err = secrets.Publish(runner, value, secrets.PublishOptions{EnvVar: "API_KEY", SetOutput: true})
package secrets
