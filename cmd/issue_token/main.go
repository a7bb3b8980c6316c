// issue_token emite un JWT para un operador del punto de venta (cajero, bodeguero, admin).
// La API no maneja usuarios: la identidad la emite un servicio externo; este comando cubre
// desarrollo y pruebas manuales con el mismo JWT_SECRET que usa la API.
//
// Uso: go run ./cmd/issue_token <user_id> [rol] [minutos]
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jhoicas/pos-ledger/pkg/config"
	"github.com/jhoicas/pos-ledger/pkg/jwt"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "uso: issue_token <user_id> [rol] [minutos]")
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET no definido")
		os.Exit(1)
	}

	userID := os.Args[1]
	role := "cajero"
	if len(os.Args) > 2 {
		role = os.Args[2]
	}
	minutes := cfg.JWT.Expiration
	if len(os.Args) > 3 {
		n, err := strconv.Atoi(os.Args[3])
		if err != nil || n <= 0 {
			fmt.Fprintf(os.Stderr, "Minutos inválidos: %q\n", os.Args[3])
			os.Exit(2)
		}
		minutes = n
	}

	tok, err := jwt.Generate(cfg.JWT.Secret, userID, role, cfg.JWT.Issuer, minutes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generar token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
