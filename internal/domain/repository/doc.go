// Package repository define las interfaces de acceso a datos del core.
//
// Las implementaciones viven en internal/store (PostgreSQL). Los services
// dependen solo de estas interfaces, nunca de un driver concreto.
package repository
