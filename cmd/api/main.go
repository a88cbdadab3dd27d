package main

import (
	"time"

	"github.com/AH316/sistahology-react-sub001/internal/config"
	"github.com/AH316/sistahology-react-sub001/internal/domain/model"
	"github.com/AH316/sistahology-react-sub001/internal/handler"
	"github.com/AH316/sistahology-react-sub001/internal/infra/db"
	infraRepo "github.com/AH316/sistahology-react-sub001/internal/infra/repository"
	"github.com/AH316/sistahology-react-sub001/internal/server"
	"github.com/AH316/sistahology-react-sub001/internal/usecase"
	"github.com/AH316/sistahology-react-sub001/internal/validator"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	//.envは無ければ環境変数だけで動く
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		panic(err)
	}

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.AdminToken{},
		&model.AuditLog{},
	); err != nil {
		panic(err)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenGormRepository(gormDB)
	tokenRepo := infraRepo.NewAdminTokenGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	authValidator := validator.NewAuthValidator()
	tokenValidator := validator.NewAdminTokenValidator()

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg, userRepo, rtRepo, authValidator, idGen, clock)
	tokenUC := usecase.NewAdminTokenUsecase(tokenRepo, txManager, auditRepo, tokenValidator, idGen, clock, cfg.AdminTokenTTL)
	onboardingUC := usecase.NewOnboardingUsecase(authUC, tokenUC)

	//refresh cookie TTL
	refreshTTL := 30 * 24 * time.Hour

	//Handler生成
	authH := handler.NewAuthHandler(onboardingUC, authUC, refreshTTL)
	tokenH := handler.NewAdminTokenHandler(cfg, tokenUC)
	adminUserH := handler.NewAdminUserHandler(cfg, userRepo, auditRepo, authUC)

	//Server起動
	addr := ":" + cfg.Port

	if err := server.Start(addr, cfg, userRepo, authH, tokenH, adminUserH); err != nil {
		panic(err)
	}
}
