// Package repository define los puertos de persistencia del motor OAuth.
//
// Son contratos de negocio, independientes del almacenamiento. Las
// implementaciones viven en internal/store/memory y internal/store/pg.
//
//	┌──────────────────────────────────────────────┐
//	│     http/services/oauth, validation, tenant  │
//	└──────────────────────────────────────────────┘
//	                     │
//	                     ▼
//	┌──────────────────────────────────────────────┐
//	│        domain/repository (interfaces)        │
//	│ Applications, AuthCodes, RefreshSessions ... │
//	└──────────────────────────────────────────────┘
//	            │                      │
//	            ▼                      ▼
//	    ┌───────────────┐      ┌───────────────┐
//	    │ store/memory  │      │   store/pg    │
//	    └───────────────┘      └───────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - "No existe" se reporta con ErrNotFound (envuelto con %w).
//   - Las operaciones de consumo/revocación son condicionales y atómicas
//     (UPDATE ... WHERE used_at IS NULL / WHERE revoked = false).
package repository
