package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Стандартный путь Docker Secrets. Переопределяется переменной
// SECRETS_DIR в тестовых и локальных окружениях.
const defaultSecretsDir = "/run/secrets"

// ReadSecret читает и триммит секрет из файла. Fallback на переменные
// окружения сознательно не делается, поведение должно быть одинаковым
// во всех окружениях.
func ReadSecret(secretName string) (string, error) {
	dir := os.Getenv("SECRETS_DIR")
	if dir == "" {
		dir = defaultSecretsDir
	}
	filePath := filepath.Join(dir, secretName)

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}
