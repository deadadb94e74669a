// Package naming convierte identificadores camelCase a nombres físicos de base de datos.
package naming

import (
	"strings"
	"unicode"
)

// PhysicalName reemplaza puntos por guiones bajos, separa las fronteras
// minúscula-MAYÚSCULA-minúscula con "_" y pasa todo a minúsculas.
// "firstName" -> "first_name", "user.lastModifiedBy" -> "user_last_modified_by".
func PhysicalName(name string) string {
	runes := []rune(strings.ReplaceAll(name, ".", "_"))
	for i := 1; i < len(runes)-1; i++ {
		if underscoreRequired(runes[i-1], runes[i], runes[i+1]) {
			runes = append(runes[:i], append([]rune{'_'}, runes[i:]...)...)
			i++
		}
	}
	return strings.ToLower(string(runes))
}

// JoinTableName deriva el nombre de la tabla intermedia de una relación muchos-a-muchos.
func JoinTableName(owningTable, property string) string {
	return owningTable + "_" + property
}

func underscoreRequired(before, current, after rune) bool {
	return unicode.IsLower(before) && unicode.IsUpper(current) && unicode.IsLower(after)
}
