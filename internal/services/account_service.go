package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"barangay/internal/models/db_models"
	"barangay/internal/models/request_models"
	"barangay/internal/models/response_models"
	"barangay/internal/repositories"
	mem "barangay/pkg/memcache"
	"barangay/pkg/utils"
)

const resetTokenTTL = 15 * time.Minute

type AccountServiceInterface interface {
	Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error)
	CreateAccount(ctx context.Context, request request_models.SignUpRequest) (*response_models.AccountResponse, error)
	Me(ctx context.Context, s utils.Session) (*response_models.AccountResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, request request_models.ForgotPasswordRequest) error
	CreateAdmin(ctx context.Context, request request_models.CreateAdminRequest) (*response_models.AccountResponse, error)
}

type AccountService struct {
	db           *gorm.DB
	accountRepo  repositories.AccountRepository
	residentRepo repositories.ResidentRepository
	tokens       *utils.TokenIssuer
	resetTokens  mem.ResetTokenStore
	mail         IMailService
	log          *zap.Logger
}

func NewAccountService(
	db *gorm.DB,
	accountRepo repositories.AccountRepository,
	residentRepo repositories.ResidentRepository,
	tokens *utils.TokenIssuer,
	resetTokens mem.ResetTokenStore,
	mail IMailService,
	log *zap.Logger,
) AccountServiceInterface {
	return &AccountService{
		db:           db,
		accountRepo:  accountRepo,
		residentRepo: residentRepo,
		tokens:       tokens,
		resetTokens:  resetTokens,
		mail:         mail,
		log:          log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *AccountService) Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error) {
	startTime := time.Now()

	account, err := a.accountRepo.FindByEmail(ctx, normalizeEmail(request.Email))
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if account == nil {
		return nil, utils.ErrInvalidCredentials
	}

	if err := utils.ComparePasswords(account.PasswordHash, request.Password); err != nil {
		return nil, utils.ErrInvalidCredentials
	}

	token, err := a.tokens.CreateToken(account.ID, account.Email, account.Role)
	if err != nil {
		return nil, err
	}

	a.log.Debug("login", zap.Uint("account_id", account.ID), zap.Duration("took", time.Since(startTime)))
	return &response_models.AccountLoginResponse{
		Token:     token,
		Role:      account.Role,
		ExpiresAt: utils.FormatRFC3339PH(time.Now().Add(a.tokens.TTL())),
	}, nil
}

// CreateAccount registers a resident: the account, its resident profile and
// the address are written together.
func (a *AccountService) CreateAccount(ctx context.Context, request request_models.SignUpRequest) (*response_models.AccountResponse, error) {
	email := normalizeEmail(request.Email)

	existingAccount, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if existingAccount != nil {
		return nil, utils.ErrEmailAlreadyExists
	}

	var birthDate *int64
	if request.BirthDate != "" {
		t, err := time.ParseInLocation("2006-01-02", request.BirthDate, utils.ManilaLocation())
		if err != nil {
			return nil, utils.NewValidationError(map[string]string{"birth_date": "must be YYYY-MM-DD"})
		}
		unix := t.Unix()
		birthDate = &unix
	}

	hashedPassword, err := utils.HashPassword(request.Password)
	if err != nil {
		return nil, err
	}

	account := &db_models.Account{
		Name:         strings.TrimSpace(request.FirstName + " " + request.LastName),
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         utils.RoleUser,
	}
	resident := &db_models.Resident{
		FirstName:   strings.TrimSpace(request.FirstName),
		MiddleName:  strings.TrimSpace(request.MiddleName),
		LastName:    strings.TrimSpace(request.LastName),
		Email:       email,
		PhoneNumber: strings.TrimSpace(request.PhoneNumber),
		BirthDate:   birthDate,
		Address:     addressFromInput(request.Address),
	}

	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := a.accountRepo.WithTx(tx).InsertTx(account, ctx); err != nil {
			return err
		}
		resident.AccountID = &account.ID
		return a.residentRepo.WithTx(tx).Create(ctx, resident)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.ErrEmailAlreadyExists
		}
		return nil, utils.NewDatabaseError(err)
	}

	a.log.Info("account registered", zap.Uint("account_id", account.ID), zap.Uint("resident_id", resident.ID))
	account.Resident = resident
	return toAccountResponse(account), nil
}

func (a *AccountService) Me(ctx context.Context, s utils.Session) (*response_models.AccountResponse, error) {
	if !s.IsAuthenticated() {
		return nil, utils.NewUnauthorizedError("Authentication required")
	}
	account, err := a.accountRepo.FindById(ctx, s.UserID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if account == nil {
		return nil, utils.NewNotFoundError("account not found")
	}
	return toAccountResponse(account), nil
}

// ForgotPassword mails a single-use reset token. Unknown addresses succeed
// silently so the endpoint does not reveal which e-mails are registered.
func (a *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	account, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return utils.NewDatabaseError(err)
	}
	if account == nil {
		return nil
	}

	token := uuid.NewString()
	a.resetTokens.Set(token, email, resetTokenTTL)
	if err := a.mail.SendMailToResetPassword(email, token); err != nil {
		a.log.Warn("send reset mail", zap.Uint("account_id", account.ID), zap.Error(err))
		return err
	}
	return nil
}

func (a *AccountService) ResetPassword(ctx context.Context, request request_models.ForgotPasswordRequest) error {
	email := normalizeEmail(request.Email)
	owner := a.resetTokens.Consume(strings.TrimSpace(request.Token))
	if owner == "" || owner != email {
		return utils.NewValidationError(map[string]string{"token": "is invalid or has expired"})
	}

	account, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return utils.NewDatabaseError(err)
	}
	if account == nil {
		return utils.NewNotFoundError("account not found")
	}

	hash, err := utils.HashPassword(request.NewPassword)
	if err != nil {
		return err
	}
	if err := a.accountRepo.UpdatePassword(ctx, account.ID, hash); err != nil {
		return utils.NewDatabaseError(err)
	}
	a.log.Info("password reset", zap.Uint("account_id", account.ID))
	return nil
}

func (a *AccountService) CreateAdmin(ctx context.Context, request request_models.CreateAdminRequest) (*response_models.AccountResponse, error) {
	if err := infoValidator.Struct(request); err != nil {
		return nil, utils.NewValidationError(map[string]string{"admin": err.Error()})
	}
	email := normalizeEmail(request.Email)

	existing, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if existing != nil {
		return nil, utils.ErrEmailAlreadyExists
	}

	hash, err := utils.HashPassword(request.Password)
	if err != nil {
		return nil, err
	}
	account := &db_models.Account{
		Name:         strings.TrimSpace(request.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         utils.RoleAdmin,
	}
	if err := a.accountRepo.InsertTx(account, ctx); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.ErrEmailAlreadyExists
		}
		return nil, utils.NewDatabaseError(err)
	}
	a.log.Info("admin account created", zap.Uint("account_id", account.ID))
	return toAccountResponse(account), nil
}

func addressFromInput(in request_models.AddressInput) *db_models.Address {
	return &db_models.Address{
		HouseNumber: strings.TrimSpace(in.HouseNumber),
		Street:      strings.TrimSpace(in.Street),
		Purok:       strings.TrimSpace(in.Purok),
		Barangay:    strings.TrimSpace(in.Barangay),
		City:        strings.TrimSpace(in.City),
		Province:    strings.TrimSpace(in.Province),
		ZipCode:     strings.TrimSpace(in.ZipCode),
	}
}

func toAccountResponse(account *db_models.Account) *response_models.AccountResponse {
	out := &response_models.AccountResponse{
		ID:    account.ID,
		Name:  account.Name,
		Email: account.Email,
		Role:  account.Role,
	}
	if account.Resident != nil {
		id := account.Resident.ID
		out.ResidentID = &id
		out.Resident = toResidentResponse(account.Resident)
	}
	return out
}
