package middleware

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"medicare-server/internal/schemas"
	"medicare-server/internal/utils"
)

// ValidateAndSanitizeStruct binds the JSON body into a fresh T, strips any
// HTML from its string fields, validates it and stashes the result in the
// request context for the handler to pick up.
func ValidateAndSanitizeStruct[T any]() gin.HandlerFunc {
	return func(c *gin.Context) {
		payload := new(T)
		if err := c.ShouldBindJSON(payload); err != nil {
			utils.WriteAndLogError(c, schemas.BadRequest, http.StatusBadRequest, err)
			c.Abort()
			return
		}

		sanitizeStringFields(payload)

		if err := utils.GetValidator().Validate.Struct(payload); err != nil {
			utils.WriteAndLogError(c, schemas.BadRequest, http.StatusBadRequest, err)
			c.Abort()
			return
		}

		c.Set(utils.SanitizedPayloadKey.String(), payload)
		c.Next()
	}
}

// sanitizeStringFields runs bluemonday's strict policy over every exported
// string field of the struct pointed to by obj.
func sanitizeStringFields(obj interface{}) {
	policy := bluemonday.StrictPolicy()

	value := reflect.ValueOf(obj).Elem()
	if value.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < value.NumField(); i++ {
		field := value.Field(i)
		if !field.CanSet() {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(policy.Sanitize(field.String()))
		case reflect.Pointer:
			if !field.IsNil() && field.Elem().Kind() == reflect.String {
				field.Elem().SetString(policy.Sanitize(field.Elem().String()))
			}
		}
	}
}
