/*
Package dsl provides a fluent builder for blueprint graphs.

It is used for fixtures, seeding and programmatic generation where writing
domain.Node and domain.Edge literals by hand would be noisy.

Example usage:

	b := dsl.New()
	b.Root("start").Title("Onboarding").Go("form")
	b.Add("form", "form").At(240, 0).Field("email", "").Go("done")
	b.Add("done", "end").At(480, 0)

	g, err := b.Build()
*/
package dsl
