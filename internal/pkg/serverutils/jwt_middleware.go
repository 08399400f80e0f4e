package serverutils

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

type Role string

const (
	RoleAgent   Role = "agent"
	RoleContact Role = "contact"
)

// Identity is the caller as stated by a verified token. For contacts UserId is
// the contact id; for agents it is the agent id.
type Identity struct {
	UserId    uint64
	CompanyId uint64
	Role      Role
}

func (i *Identity) IsAgent() bool { return i.Role == RoleAgent }

func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
		}

		identity, err := ParseIdentity(authHeader[7:], secret)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		ctx.Locals(identityKey, identity)
		return ctx.Next()
	}
}

// GetIdentity returns the identity stored by JwtMiddleware.
func GetIdentity(ctx *fiber.Ctx) *Identity {
	identity, _ := ctx.Locals(identityKey).(*Identity)
	return identity
}

// ParseIdentity verifies an HMAC token and reads user_id, company_id and role.
func ParseIdentity(tokenStr, secret string) (*Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}

	userId, err := claimID(claims, "user_id")
	if err != nil {
		return nil, err
	}
	companyId, err := claimID(claims, "company_id")
	if err != nil {
		return nil, err
	}

	role := Role(fmt.Sprint(claims["role"]))
	if role != RoleAgent && role != RoleContact {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	return &Identity{UserId: userId, CompanyId: companyId, Role: role}, nil
}

// claimID accepts JSON numbers (decoded as float64) and numeric strings.
func claimID(claims jwt.MapClaims, key string) (uint64, error) {
	switch v := claims[key].(type) {
	case float64:
		if v > 0 && v == float64(uint64(v)) {
			return uint64(v), nil
		}
	case string:
		if id, err := strconv.ParseUint(v, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, fmt.Errorf("token missing %s", key)
}
