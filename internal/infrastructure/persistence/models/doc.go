// Package models contains GORM persistence models that map to database tables.
// These models are separate from the cart domain types to keep the domain layer
// free of ORM concerns.
//
// Structure:
//   - cart.go: CartLineModel, one row per server cart line (cartd, postgres),
//     and LocalCartModel, one JSON document per scope in the client's SQLite cache
//
// Mappers (ToDomain, CartLineModelFromDomain) convert between rows and cart.Line.
package models
