// Package graph holds the GraphQL schema, its resolvers and the in-process
// event broker that feeds subscriptions.
package graph

import (
	graphql "github.com/graph-gophers/graphql-go"
)

// Schema is the SDL served at /graphql.
const Schema = `
schema {
	query: Query
	mutation: Mutation
	subscription: Subscription
}

type Query {
	hello: String!
	me: User
}

type Mutation {
	register(email: String!, password: String!): User!
}

type Subscription {
	userRegistered: User!
}

type User {
	id: ID!
	email: String!
}
`

// NewSchema parses Schema against r.
func NewSchema(r *Resolver) (*graphql.Schema, error) {
	return graphql.ParseSchema(Schema, r)
}
