package model

// RegisterRequest is trimmed by the auth service before validation, so length
// rules apply to the stored value.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,excludes=@"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"omitempty,max=100"`
}

// LoginRequest accepts either field; Email wins when both are present.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Login() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Username
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// UpdateIdentityRequest is a partial update; nil fields are left untouched.
type UpdateIdentityRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=50,excludes=@"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	FullName *string `json:"full_name" validate:"omitempty,max=100"`
	Role     *string `json:"role" validate:"omitempty,oneof=user moderator admin"`
	Active   *bool   `json:"active"`
}

type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description string  `json:"description" validate:"required,min=1"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Category    string  `json:"category" validate:"required,product_category"`
	SKU         string  `json:"sku" validate:"omitempty,max=50"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
	Inventory   *int    `json:"inventory" validate:"omitempty,gte=0"`
	Tags        TagList `json:"tags" validate:"omitempty,dive,min=1,max=50"`
	Active      *bool   `json:"active"`
}

type UpdateProductRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string  `json:"description" validate:"omitempty,min=1"`
	Price       *float64 `json:"price" validate:"omitempty,gt=0"`
	Category    *string  `json:"category" validate:"omitempty,product_category"`
	SKU         *string  `json:"sku" validate:"omitempty,max=50"`
	ImageURL    *string  `json:"image_url" validate:"omitempty,url"`
	Inventory   *int     `json:"inventory" validate:"omitempty,gte=0"`
	Tags        *TagList `json:"tags" validate:"omitempty,dive,min=1,max=50"`
	Active      *bool    `json:"active"`
}
